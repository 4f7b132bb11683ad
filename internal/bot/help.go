package bot

import "fmt"

func (b *Bot) helpLines() []string {
	t := b.cfg.Trigger
	return []string{
		fmt.Sprintf("%s help (or %s): this list", t, HelpAlias),
		fmt.Sprintf("%s token <token>: teach me your Pivotal Tracker API token", t),
		fmt.Sprintf("%s initials [<nick>] <initials>: set the initials used by work", t),
		fmt.Sprintf("%s projects: list every project your token can see", t),
		fmt.Sprintf("%s new project <id>: remember a project by its id", t),
		fmt.Sprintf("%s project <id or name>: set your current project", t),
		fmt.Sprintf("%s new|add <feature|chore|bug|release> <name>: add a story to the backlog", t),
		fmt.Sprintf("%s find <text>: search stories in your current project", t),
		fmt.Sprintf("%s finished: list finished stories", t),
		fmt.Sprintf("%s work [<nick>]: list started stories owned by you or <nick>", t),
		fmt.Sprintf("%s list found (or %s): show your last search in full", t, b.cfg.ListAlias),
		fmt.Sprintf("%s story <n>: pick story n from your last search", t),
		fmt.Sprintf("%s story <id>: pick a story by its id", t),
		fmt.Sprintf("%s story <story_type|estimate|current_state|name> <value>: change your current story", t),
		fmt.Sprintf("%s comment|note <text>: comment on your current story", t),
		fmt.Sprintf("%s deliver finished: deliver every finished story", t),
	}
}

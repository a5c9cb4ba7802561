// Package bundle names the fixed set of assets that claudesync replicates.
package bundle

import "path/filepath"

// File and directory names of the asset bundle.
const (
	// Constitution is the shared constitution document.
	Constitution = "constitution.md"

	// Settings is the Claude project settings file.
	Settings = "settings.json"

	// AgentsDir holds agent definitions.
	AgentsDir = "agents"

	// CommandsDir holds slash command definitions.
	CommandsDir = "commands"

	// ScriptsDir holds helper scripts.
	ScriptsDir = "scripts"
)

// Kind distinguishes single files from directory trees
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

// Item is one named member of the bundle
type Item struct {
	Name string
	Kind Kind
}

// Path returns the item's location under root.
func (i Item) Path(root string) string {
	return filepath.Join(root, i.Name)
}

// Label is the name used in log output; directories get a trailing slash.
func (i Item) Label() string {
	if i.Kind == KindDir {
		return i.Name + "/"
	}
	return i.Name
}

var dirs = []Item{
	{Name: AgentsDir, Kind: KindDir},
	{Name: CommandsDir, Kind: KindDir},
	{Name: ScriptsDir, Kind: KindDir},
}

// PushItems returns the items propagated from the canonical root to each
// target. The settings file is only included when includeSettings is set.
func PushItems(includeSettings bool) []Item {
	items := []Item{{Name: Constitution, Kind: KindFile}}
	if includeSettings {
		items = append(items, Item{Name: Settings, Kind: KindFile})
	}
	return append(items, dirs...)
}

// PullItems returns the items copied back from a target into the canonical
// root.
func PullItems() []Item {
	items := []Item{
		{Name: Constitution, Kind: KindFile},
		{Name: Settings, Kind: KindFile},
	}
	return append(items, dirs...)
}

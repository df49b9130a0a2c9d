package runctx

// Defaults holds the scoped default values threaded through operations
// (spec.md §3, §4.E): user, group, umask, directory/file creation modes, the
// file/directory owner applied by file ops (separate from User, the
// account commands run as), cwd, the dry-run ("check") flag, and verbosity.
// Every field is a pointer so "unset" is distinguishable from "explicitly
// set to the zero value" when a frame inherits from the one below it.
type Defaults struct {
	User           *string
	Group          *string
	Umask          *string
	DirMode        *string
	FileMode       *string
	Owner          *string
	Cwd            *string
	Check          *bool
	Verbosity      *int
	PackageManager *string
}

// merge returns a new Defaults with every field from override taking
// precedence over base, falling back to base's value when override leaves
// a field nil. Neither input is mutated.
func merge(base, override Defaults) Defaults {
	out := base
	if override.User != nil {
		out.User = override.User
	}
	if override.Group != nil {
		out.Group = override.Group
	}
	if override.Umask != nil {
		out.Umask = override.Umask
	}
	if override.DirMode != nil {
		out.DirMode = override.DirMode
	}
	if override.FileMode != nil {
		out.FileMode = override.FileMode
	}
	if override.Owner != nil {
		out.Owner = override.Owner
	}
	if override.Cwd != nil {
		out.Cwd = override.Cwd
	}
	if override.Check != nil {
		out.Check = override.Check
	}
	if override.Verbosity != nil {
		out.Verbosity = override.Verbosity
	}
	if override.PackageManager != nil {
		out.PackageManager = override.PackageManager
	}
	return out
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }

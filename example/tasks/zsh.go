// Package tasks holds the operator's compiled-in task definitions, the
// Go-native analogue of original_source/example/tasks/zsh.py: a structural
// rewrite (package → git → directory → template), not a transliteration.
package tasks

import (
	"context"

	"github.com/oddlama/forge/pkg/op"
	"github.com/oddlama/forge/pkg/op/file"
	"github.com/oddlama/forge/pkg/op/git"
	"github.com/oddlama/forge/pkg/runctx"
)

// Zsh installs zsh and a global configuration, grounded on
// original_source/example/tasks/zsh.py's TaskZsh.run: portage.package,
// two git.checkout plugin clones, the /etc/zsh directory, and two
// rendered templates.
func Zsh(ctx context.Context, rc *runctx.Context) error {
	return rc.WithDefaults(runctx.Defaults{
		User:           strPtr("root"),
		Group:          strPtr("root"),
		Owner:          strPtr("root"),
		Umask:          strPtr("0022"),
		DirMode:        strPtr("0755"),
		FileMode:       strPtr("0644"),
		PackageManager: strPtr("portage"),
	}, func(rc *runctx.Context) error {
		return runZsh(ctx, rc)
	})
}

func runZsh(ctx context.Context, rc *runctx.Context) error {
	if err := op.Package(ctx, rc, "app-shells/zsh", op.Present, nil); err != nil {
		return err
	}

	depth := 1
	if err := git.Checkout(ctx, rc,
		"https://github.com/romkatv/powerlevel10k",
		"/usr/share/zsh/repos/romkatv/powerlevel10k",
		&depth, nil); err != nil {
		return err
	}
	if err := git.Checkout(ctx, rc,
		"https://github.com/Aloxaf/fzf-tab",
		"/usr/share/zsh/repos/Aloxaf/fzf-tab",
		&depth, nil); err != nil {
		return err
	}

	if err := file.Directory(ctx, rc, "/etc/zsh", nil, nil, nil); err != nil {
		return err
	}
	if err := file.Template(ctx, rc, "example/templates/zsh/zshrc.tmpl", "/etc/zsh/zshrc", nil, nil, nil); err != nil {
		return err
	}
	if err := file.Template(ctx, rc, "example/templates/zsh/zprofile.tmpl", "/etc/zsh/zprofile", nil, nil, nil); err != nil {
		return err
	}

	return nil
}

func strPtr(s string) *string { return &s }

// Package gitsource keeps a local checkout of a git repository of tune
// files in step with its remote.
package gitsource

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
)

// Sync clones the repository at url into localPath if no checkout
// exists there yet, or pulls the latest changes if one does.
func Sync(url, localPath string) error {
	_, err := os.Stat(localPath)
	if os.IsNotExist(err) {
		slog.Info("cloning tune repository", "url", url, "path", localPath)
		_, err := git.PlainClone(localPath, false, &git.CloneOptions{
			URL: url,
		})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", url, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}

	slog.Info("pulling tune repository", "path", localPath)
	repo, err := git.PlainOpen(localPath)
	if err != nil {
		return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
	}

	err = worktree.Pull(&git.PullOptions{RemoteName: "origin"})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
	}
	return nil
}

package backend

import (
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/hatloop/hatloop/pkg/errors"
)

// preparedCommand is the fully-resolved argv plus stdin payload and temp
// file cleanup for one invocation, after PromptMode has been applied.
type preparedCommand struct {
	Args     []string
	Stdin    string // non-empty only under PromptModeStdin
	Cleanup  func()
}

func noopCleanup() {}

// preparePrompt threads the prompt into the child's argv or stdin
// according to spec.PromptMode.
func preparePrompt(spec Spec, prompt string) (preparedCommand, error) {
	switch spec.PromptMode {
	case PromptModeArg:
		return preparedCommand{Args: append(append([]string{}, spec.Args...), prompt), Cleanup: noopCleanup}, nil

	case PromptModeStdin:
		return preparedCommand{Args: append([]string{}, spec.Args...), Stdin: prompt, Cleanup: noopCleanup}, nil

	case PromptModeFlaggedArg:
		args := append(append([]string{}, spec.Args...), spec.PromptFlag, prompt)
		return preparedCommand{Args: args, Cleanup: noopCleanup}, nil

	case PromptModeTempFile:
		f, err := os.CreateTemp(spec.WorkDir, "hatloop-prompt-*.txt")
		if err != nil {
			return preparedCommand{}, apperrors.NewIoError("create prompt temp file", err)
		}
		if _, err := f.WriteString(prompt); err != nil {
			f.Close()
			os.Remove(f.Name())
			return preparedCommand{}, apperrors.NewIoError("write prompt temp file", err)
		}
		f.Close()
		args := append(append([]string{}, spec.Args...), f.Name())
		return preparedCommand{
			Args:    args,
			Cleanup: func() { os.Remove(f.Name()) },
		}, nil

	default:
		return preparedCommand{}, apperrors.NewConfigError(fmt.Sprintf("unknown prompt mode %q", spec.PromptMode), nil)
	}
}

func resolveWorkDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", apperrors.NewIoError("resolve working directory", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", apperrors.NewIoError("resolve working directory", err)
	}
	return abs, nil
}

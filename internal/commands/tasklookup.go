package commands

import (
	"context"
	"fmt"
	"io"

	"supatodo/internal/exitcode"
	"supatodo/internal/service"
	"supatodo/internal/shell"
	"supatodo/internal/tasklist"
)

// alertPrinter reports Synchronizer notifications as error lines.
type alertPrinter struct {
	w io.Writer
}

func (p alertPrinter) Alert(msg string) {
	fmt.Fprintf(p.w, "error: %s\n", msg)
}

// openTaskList routes the current session through a Shell and returns the
// mounted Synchronizer. Failures are already reported on errOut.
func openTaskList(ctx context.Context, be *service.Backend, errOut io.Writer) (*tasklist.Synchronizer, int) {
	s, err := be.Auth.CurrentSession(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return nil, exitcode.AuthError
	}

	route, sync := shell.New(be.Store, alertPrinter{w: errOut}).Apply(s)
	if route != shell.RouteTaskList || sync == nil {
		fmt.Fprintln(errOut, "error: not logged in (run: supatodo login)")
		return nil, exitcode.AuthError
	}
	return sync, exitcode.Success
}

// resolveRefs maps refs onto the loaded collection. Positions count from 1
// in newest-first order. A task referenced twice is returned once.
func resolveRefs(tasks []service.Task, refs []TaskRef) ([]service.Task, error) {
	seen := make(map[string]bool)
	var result []service.Task
	for _, ref := range refs {
		var (
			task  service.Task
			found bool
		)
		if ref.ID != "" {
			for _, t := range tasks {
				if t.ID == ref.ID {
					task, found = t, true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("task not found: %s", ref.ID)
			}
		} else {
			if ref.Num < 1 || ref.Num > len(tasks) {
				return nil, fmt.Errorf("task number out of range: %d", ref.Num)
			}
			task = tasks[ref.Num-1]
		}

		if seen[task.ID] {
			continue
		}
		seen[task.ID] = true
		result = append(result, task)
	}
	return result, nil
}

// runOnRefs loads the collection, resolves every reference against it and
// applies fn to each task in argument order. Nothing is changed when a
// reference does not resolve.
func runOnRefs(ctx context.Context, quiet bool, be *service.Backend, args []string, out, errOut io.Writer,
	fn func(ctx context.Context, sync *tasklist.Synchronizer, task service.Task) error) int {
	refs, err := ParseTaskRefs(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	sync, code := openTaskList(ctx, be, errOut)
	if sync == nil {
		return code
	}
	if err := sync.Load(ctx); err != nil {
		return exitcode.ForError(err)
	}

	tasks, err := resolveRefs(sync.Tasks(), refs)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	for _, task := range tasks {
		if err := fn(ctx, sync, task); err != nil {
			return exitcode.ForError(err)
		}
	}

	if !quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

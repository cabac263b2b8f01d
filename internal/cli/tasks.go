package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ErrDuplicateTask is returned when a task name is registered twice.
var ErrDuplicateTask = errors.New("task already registered")

// Task is a named operation run against the selected network.
type Task struct {
	Name  string
	Short string
	Long  string
	Args  cobra.PositionalArgs
	// Flags binds the task's own flags.
	Flags func(fs *pflag.FlagSet)
	Run   func(cmd *cobra.Command, a *app, args []string) error
}

// TaskRegistry maps task names to tasks.
type TaskRegistry struct {
	tasks map[string]Task
}

// NewTaskRegistry returns an empty registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{tasks: make(map[string]Task)}
}

// Register adds a task.
func (r *TaskRegistry) Register(t Task) error {
	if t.Name == "" {
		return errors.New("task name is required")
	}
	if t.Run == nil {
		return fmt.Errorf("task %s: no handler", t.Name)
	}
	if _, ok := r.tasks[t.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.Name)
	}
	r.tasks[t.Name] = t
	return nil
}

// Get returns the named task.
func (r *TaskRegistry) Get(name string) (Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// List returns the tasks in name order.
func (r *TaskRegistry) List() []Task {
	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Commands turns every task into a subcommand bound to a.
func (r *TaskRegistry) Commands(a *app) []*cobra.Command {
	tasks := r.List()
	cmds := make([]*cobra.Command, 0, len(tasks))
	for _, t := range tasks {
		t := t
		cmd := &cobra.Command{
			Use:   t.Name,
			Short: t.Short,
			Long:  t.Long,
			Args:  t.Args,
			RunE: func(cmd *cobra.Command, args []string) error {
				return t.Run(cmd, a, args)
			},
		}
		if t.Flags != nil {
			t.Flags(cmd.Flags())
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func builtinTasks() *TaskRegistry {
	r := NewTaskRegistry()
	for _, t := range []Task{
		verifyDuetTask(),
		verifyStatusTask(),
		accountsTask(),
		dataImportTask(),
	} {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Package process provides external process spawning.
//
// ExecSpawner runs a child to completion and captures its output:
//
//	res, err := process.ExecSpawner{}.Spawn(ctx, process.Command{
//	    Name: "npx",
//	    Args: []string{"prisma", "db", "push"},
//	})
//
// A child that ran and exited returns a nil error whatever its exit code.
// A child that could not be started returns a *StartError.
//
// The capability also exposes the plugin:process|exit and
// plugin:process|restart commands.
package process

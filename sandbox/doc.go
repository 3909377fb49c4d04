// Package sandbox runs untrusted Python code in a child interpreter.
//
// A Sandbox applies, in order:
//
//   - a lexical policy check that rejects denylisted imports and, unless
//     allowed, eval, exec and __import__, before any process starts;
//   - a fresh per-run directory and a minimal environment;
//   - a bootstrap that caps address space and disables sockets and file
//     writes unless the Config permits them;
//   - a wall-clock timeout that kills the whole process group;
//   - bounded capture of stdout and stderr, truncated with TruncationMarker.
//
// These measures are advisory. They stop accidents and casual misuse by
// generated code; they are not a security boundary against a determined
// attacker.
//
//	sb, err := sandbox.New(sandbox.Config{Timeout: 10 * time.Second})
//	if err != nil {
//		return err
//	}
//	defer sb.Close()
//	res := sb.Execute(ctx, "print(2 + 2)")
//	fmt.Println(res.Status, res.Output)
package sandbox

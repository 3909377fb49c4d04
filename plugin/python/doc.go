// Package python exposes the execution sandbox and the LLM code generator
// as a plugin.
//
//	sb, err := sandbox.New(sandbox.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer sb.Close()
//	gen, err := codegen.NewGenerator(model)
//	if err != nil {
//		return err
//	}
//	registry.Register(python.New(sb, python.WithGenerator(gen)))
//
// Failed runs keep their captured output in the envelope data.
package python

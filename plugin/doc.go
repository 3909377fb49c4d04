// Package plugin defines the contract shared by every adapter: the
// {success, data|error} Result envelope, the failure taxonomy, named
// Functions grouped into Plugins, and the Registry that maps plugin names
// to implementations.
//
// A host builds the Registry once at startup and then invokes functions by
// name:
//
//	reg := plugin.NewRegistry()
//	_ = reg.Register(calculator.New())
//	res := reg.Invoke(ctx, "calculator", "add", plugin.Args{"a": 2, "b": 3})
//
// Functions never surface Go errors to the host. Validation problems,
// library errors, timeouts and code-generation failures are reported in
// Result.Error with Result.Kind set accordingly.
//
// Registry.Tools adapts every function to the langchaingo tools.Tool
// interface so the registry can be handed straight to an agent.
package plugin

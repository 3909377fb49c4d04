// Kernel Plugins - Tool Adapters for LLM Orchestration in Go
//
// kernelplugins exposes databases, the shell, web search, a calculator and a
// sandboxed Python interpreter as named plugins. An orchestration layer or an
// LLM agent calls them by name with loosely typed arguments. Every call returns
// a uniform envelope: {"success": true, "data": ...} or
// {"success": false, "error": "...", "kind": "..."}.
//
// # Quick Start
//
//	go get github.com/smallnest/kernelplugins
//
// Register a few plugins and invoke them:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/smallnest/kernelplugins/plugin"
//		"github.com/smallnest/kernelplugins/plugin/calculator"
//		"github.com/smallnest/kernelplugins/plugin/shell"
//	)
//
//	func main() {
//		reg := plugin.NewRegistry()
//		_ = reg.Register(calculator.New())
//		_ = reg.Register(shell.New())
//
//		res := reg.Invoke(context.Background(), "calculator", "add",
//			plugin.Args{"a": 2, "b": 3})
//		fmt.Println(res.Success, res.Data)
//	}
//
// # Packages
//
//   - plugin: the Plugin contract, argument helpers, result envelope,
//     error kinds and the name to plugin Registry. The registry also
//     exports every function as a langchaingo tool.
//   - plugin/postgres, plugin/sqlite: SQL access over pgx and database/sql.
//   - plugin/mongodb, plugin/redis: document and key/value stores.
//   - plugin/shell: bounded execution of shell commands.
//   - plugin/websearch: Google, SerpApi, Tavily and Brave behind one
//     SearchAdapter interface.
//   - plugin/python, sandbox, codegen: LLM code generation, a restricted
//     Python executor and the generate, execute, retry loop joining them.
//   - llms/openaicompat: an OpenAI-compatible langchaingo model.
//   - log: leveled and colorized logging with LLM phase levels.
//   - config: YAML, environment and file-backed secrets.
//
// # Code Generation
//
//	llm, _ := openaicompat.New(openaicompat.WithModel("gpt-4o-mini"))
//	gen, _ := codegen.NewGenerator(llm)
//	sb, _ := sandbox.New(sandbox.Config{Timeout: 30 * time.Second})
//	defer sb.Close()
//
//	reg.Register(python.New(sb, python.WithGenerator(gen)))
//	res := reg.Invoke(ctx, "python", "generate_and_execute_code",
//		plugin.Args{"task": "print the first ten primes"})
//
// Generated code passes the sandbox policy check before it runs. Failed runs
// are fed back to the model together with the error until the retry budget
// is spent.
//
// # Command Line
//
// cmd/kernelplugins wires everything from a config file:
//
//	kernelplugins list --params
//	kernelplugins call sqlite list_tables
//	kernelplugins exec script.py
//	kernelplugins generate "plot a sine wave to sine.png"
package kernelplugins

// Package codegen asks a language model for Python code and runs it.
//
// Generator makes one model call per request and extracts the fenced
// python block from the reply. Orchestrator wires a Generator to a
// sandbox and retries:
//
//	GENERATE -> EXECUTE -> DONE            on success
//	                    -> RETRY -> GENERATE   while retries remain
//	                    -> DONE            when they do not
//
// A retry sends the failed code and its error back to the model. A
// generation failure ends the run immediately with a failed result.
package codegen

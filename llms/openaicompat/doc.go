// Package openaicompat provides an llms.Model for any server that speaks
// the OpenAI chat completions API, built on github.com/sashabaranov/go-openai.
// It is the default model behind the code generator.
package openaicompat

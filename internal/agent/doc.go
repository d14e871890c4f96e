// Package agent runs reviewer agents through a host agent CLI and turns their
// output into structured review results.
//
// # Invocation
//
// HostAgent spawns the host CLI in non-interactive JSON mode, one process per
// selected model:
//
//	host := agent.NewHostAgent("pi")
//	inv, err := host.Review(ctx, &agent.ReviewRequest{
//	    Model:            domain.ModelSelection{Provider: "anthropic", ModelID: "claude-sonnet-4-5"},
//	    DiffPath:         files.DiffPath,
//	    ChangedFiles:     changed,
//	    SystemPromptPath: files.SystemPromptPath,
//	})
//
// The process writes line-delimited JSON events to stdout. Only finalized
// assistant messages and finalized tool results are retained; malformed lines
// are dropped. Cancelling ctx sends SIGTERM to the process group and SIGKILL
// after a grace period, and Review still returns whatever was collected.
//
// # Parsing
//
// The final answer is the last assistant message. ParseReviewOutput pulls a
// {findings, summary, score} object out of it by trying fenced code blocks,
// the object enclosing the "findings" key, the outermost braces and finally
// the whole text, then normalizes every field.
//
// # Models
//
// ListModels asks the host which models are authenticated; SelectModels picks
// the reviewers from them according to a SelectionPolicy.
package agent

package coordinator

import (
	"context"
	"time"

	"github.com/llm-defender/defender-go/core/registry"
	"github.com/llm-defender/defender-go/core/types"
)

// Result is the per-worker outcome of one dispatch. Output is nil when
// the worker did not answer within its timeout; such workers are scored
// zero for the round but stay eligible for future rounds.
type Result struct {
	Worker      registry.Worker
	Output      *types.Response
	ProcessTime time.Duration
}

// Transport is the network collaborator that dispatches the prompt to
// the target workers and collects their responses. The call blocks
// until every outstanding request completed or timed out individually;
// a single slow worker never aborts the others.
type Transport interface {
	Query(ctx context.Context, workers []registry.Worker, prompt *types.Prompt) []Result
}

// Signer is the wallet collaborator used to authenticate prompt API
// requests.
type Signer interface {
	Hotkey() string
	Sign(data string) (string, error)
}

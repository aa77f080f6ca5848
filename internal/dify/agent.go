package dify

import (
	"context"
	"time"

	"github.com/OdaKanta/DifyInterviewForm/internal/turn"
)

// Agent adapts Client to the turn controller's collaborator contract,
// selecting blocking or streaming mode and bounding every call.
type Agent struct {
	Client    *Client
	Streaming bool
	Timeout   time.Duration
}

// Chat performs one exchange in the configured response mode.
func (a *Agent) Chat(ctx context.Context, req turn.Request, onFragment func(string)) (turn.Result, error) {
	ctx, cancel := withTimeout(ctx, a.Timeout)
	defer cancel()

	cr := ChatRequest{
		Inputs:         req.Inputs,
		Query:          req.Query,
		User:           req.User,
		ConversationID: req.ConversationID,
	}
	var (
		res ChatResult
		err error
	)
	if a.Streaming {
		res, err = a.Client.StreamChatMessage(ctx, cr, onFragment)
	} else {
		res, err = a.Client.SendChatMessage(ctx, cr)
	}
	if err != nil {
		return turn.Result{}, err
	}
	return turn.Result{Answer: res.Answer, ConversationID: res.ConversationID}, nil
}

// UploadFile registers a document with the agent.
func (a *Agent) UploadFile(ctx context.Context, filename, contentType string, data []byte, user string) (string, error) {
	ctx, cancel := withTimeout(ctx, a.Timeout)
	defer cancel()
	return a.Client.UploadFile(ctx, filename, contentType, data, user)
}

// OpeningStatement fetches the application's opening statement.
func (a *Agent) OpeningStatement(ctx context.Context, user string) (string, error) {
	ctx, cancel := withTimeout(ctx, a.Timeout)
	defer cancel()
	return a.Client.OpeningStatement(ctx, user)
}

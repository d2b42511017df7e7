package nodeapi

import (
	"context"
	"fmt"

	"github.com/opendlt/movecall/types/move"
)

// NewViewRequest builds a view call, validating the function id and type
// arguments and converting each argument to its JSON form.
func NewViewRequest(functionID string, typeArgs []string, args ...move.Value) (*ViewRequest, error) {
	fn, err := move.ParseFunctionID(functionID)
	if err != nil {
		return nil, err
	}

	tags, err := move.ParseTypeTags(typeArgs)
	if err != nil {
		return nil, err
	}

	req := &ViewRequest{
		Function:      fn.String(),
		TypeArguments: make([]string, 0, len(tags)),
		Arguments:     make([]any, 0, len(args)),
	}
	for _, tag := range tags {
		req.TypeArguments = append(req.TypeArguments, tag.String())
	}
	for i, arg := range args {
		v, err := move.JSONArgument(arg)
		if err != nil {
			return nil, fmt.Errorf("view argument %d: %w", i, err)
		}
		req.Arguments = append(req.Arguments, v)
	}

	return req, nil
}

// View calls a read-only function and returns its return values. Views do
// not change state and need no signature.
func (c *Client) View(ctx context.Context, req *ViewRequest) (ViewResult, error) {
	if req == nil {
		return nil, fmt.Errorf("view request cannot be nil")
	}

	var result ViewResult
	err := c.postJSON(ctx, "view", "/view", req, &result)
	c.metrics.ObserveView(err)
	if err != nil {
		return nil, fmt.Errorf("view %s failed: %w", req.Function, err)
	}

	c.logger.Debug("view %s returned %d values", req.Function, len(result))
	return result, nil
}

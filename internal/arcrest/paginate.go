package arcrest

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strconv"
)

const DefaultPageSize = 100

// Paginate lazily walks a start/num paged endpoint yielding the raw items found under itemsKey.
//
// The next page is requested from the server supplied nextStart, iteration stops when
// nextStart is -1 or missing, when it does not advance, or when a page is empty.
// Errors are yielded once and end the iteration.
func (c *Client) Paginate(ctx context.Context, endpoint string, params Params, pageSize int, itemsKey string) iter.Seq2[json.RawMessage, error] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return func(yield func(json.RawMessage, error) bool) {
		start := 1

		for {
			page := params.clone()
			page["start"] = strconv.Itoa(start)
			page["num"] = strconv.Itoa(pageSize)

			var body map[string]json.RawMessage
			if err := c.Call(ctx, endpoint, page, &body); err != nil {
				yield(nil, err)
				return
			}

			var items []json.RawMessage
			if raw, ok := body[itemsKey]; ok && string(raw) != "null" {
				if err := json.Unmarshal(raw, &items); err != nil {
					yield(nil, &ApiError{Endpoint: endpoint, Message: fmt.Sprintf("%s is not a list: %v", itemsKey, err)})
					return
				}
			}

			if len(items) == 0 {
				return
			}

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}

			next, ok := nextStart(body)
			if !ok || next <= start {
				return
			}
			start = next
		}
	}
}

func nextStart(body map[string]json.RawMessage) (int, bool) {
	raw, ok := body["nextStart"]
	if !ok {
		return 0, false
	}

	var cursor int
	if err := json.Unmarshal(raw, &cursor); err != nil || cursor < 0 {
		return 0, false
	}
	return cursor, true
}

// Items decodes each raw item of seq into T.
func Items[T any](seq iter.Seq2[json.RawMessage, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for raw, err := range seq {
			var item T
			if err != nil {
				yield(item, err)
				return
			}
			if err := json.Unmarshal(raw, &item); err != nil {
				yield(item, fmt.Errorf("decode item: %w", err))
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}

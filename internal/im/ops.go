package im

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Service paths on the IM server, one per supported operation.
const (
	pathAccountCheck   = "v4/im_open_login_svc/account_check"
	pathAccountImport  = "v4/im_open_login_svc/account_import"
	pathSendMessage    = "v4/openim/sendmsg"
	pathAddGroupMember = "v4/group_open_http_svc/add_group_member"
)

// UnknownOperationError rejects a dispatch to a method outside the
// registry. The available set is fixed at startup; client input never
// extends it.
type UnknownOperationError struct {
	Name      string
	Available []string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown im operation %q, available: %s", e.Name, strings.Join(e.Available, ", "))
}

type checkItem struct {
	UserID string `json:"UserID"`
}

type checkResultItem struct {
	UserID        string `json:"UserID"`
	ResultCode    int    `json:"ResultCode"`
	AccountStatus string `json:"AccountStatus"`
}

// AccountCheck reports whether the account has been imported into the IM
// service.
func (c *Client) AccountCheck(ctx context.Context, userID string) (bool, error) {
	resp, err := c.Call(ctx, pathAccountCheck, map[string]interface{}{
		"CheckItem": []checkItem{{UserID: userID}},
	})
	if err != nil {
		return false, err
	}

	var items []checkResultItem
	if len(resp.ResultItem) > 0 {
		if err := json.Unmarshal(resp.ResultItem, &items); err != nil {
			return false, fmt.Errorf("failed to decode account check result: %w", err)
		}
	}
	return len(items) > 0 && items[0].AccountStatus == "Imported", nil
}

// AccountImport creates the account on the IM service.
func (c *Client) AccountImport(ctx context.Context, userID, nick, faceURL string) error {
	_, err := c.Call(ctx, pathAccountImport, map[string]interface{}{
		"UserID":  userID,
		"Nick":    nick,
		"FaceUrl": faceURL,
	})
	return err
}

// EnsureAccount imports the account unless it already exists. Login calls
// this so a chat identity is always ready by the time the client connects.
func (c *Client) EnsureAccount(ctx context.Context, userID, nick, faceURL string) error {
	imported, err := c.AccountCheck(ctx, userID)
	if err != nil {
		return err
	}
	if imported {
		return nil
	}
	return c.AccountImport(ctx, userID, nick, faceURL)
}

type sendMessageParams struct {
	FromAccount     string `json:"From_Account"`
	ToAccount       string `json:"To_Account"`
	Text            string `json:"Text"`
	CloudCustomData string `json:"CloudCustomData"`
}

// SendMessage delivers a one-to-one text message through the IM server.
func (c *Client) SendMessage(ctx context.Context, params sendMessageParams) (*Response, error) {
	return c.Call(ctx, pathSendMessage, map[string]interface{}{
		"SyncOtherMachine": 1,
		"From_Account":     params.FromAccount,
		"To_Account":       params.ToAccount,
		"CloudCustomData":  params.CloudCustomData,
		"MsgRandom":        c.random(),
		"ForbidCallbackControl": []string{
			"ForbidBeforeSendMsgCallback",
			"ForbidAfterSendMsgCallback",
		},
		"MsgBody": []map[string]interface{}{
			{
				"MsgType": "TIMTextElem",
				"MsgContent": map[string]string{
					"Text": params.Text,
				},
			},
		},
	})
}

type addGroupMemberParams struct {
	GroupID string `json:"groupId"`
	Member  string `json:"member"`
}

// AddGroupMember adds a single member to a group.
func (c *Client) AddGroupMember(ctx context.Context, params addGroupMemberParams) (*Response, error) {
	return c.Call(ctx, pathAddGroupMember, map[string]interface{}{
		"GroupId": params.GroupID,
		"MemberList": []map[string]string{
			{"Member_Account": params.Member},
		},
	})
}

// Handler executes one dispatched operation against the IM server.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Registry maps operation names to handlers. The map is built once at
// startup and is closed: Dispatch never invents handlers from input.
type Registry struct {
	handlers map[string]Handler
	names    []string
}

func NewRegistry(client *Client) *Registry {
	r := &Registry{handlers: make(map[string]Handler)}

	r.register("accountCheck", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var items []checkItem
		if err := json.Unmarshal(params, &items); err != nil {
			return nil, fmt.Errorf("invalid accountCheck params: %w", err)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("accountCheck requires at least one UserID")
		}
		return client.AccountCheck(ctx, items[0].UserID)
	})

	r.register("accountImport", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var p struct {
			UserID  string `json:"UserID"`
			Nick    string `json:"Nick"`
			FaceURL string `json:"FaceUrl"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid accountImport params: %w", err)
		}
		if err := client.AccountImport(ctx, p.UserID, p.Nick, p.FaceURL); err != nil {
			return false, err
		}
		return true, nil
	})

	r.register("restSendMsg", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var p sendMessageParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid restSendMsg params: %w", err)
		}
		return client.SendMessage(ctx, p)
	})

	r.register("addGroupMember", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var p addGroupMemberParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid addGroupMember params: %w", err)
		}
		return client.AddGroupMember(ctx, p)
	})

	return r
}

func (r *Registry) register(name string, handler Handler) {
	r.handlers[name] = handler
	r.names = append(r.names, name)
}

// Names returns the operations the registry accepts, in registration order.
func (r *Registry) Names() []string {
	return r.names
}

// Dispatch runs the named operation. Unregistered names fail with
// *UnknownOperationError before any upstream call happens.
func (r *Registry) Dispatch(ctx context.Context, name string, params json.RawMessage) (interface{}, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, &UnknownOperationError{Name: name, Available: r.Names()}
	}
	return handler(ctx, params)
}

package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/siteos-go/internal/controller"
)

// defaultRequestTimeout bounds the request tool when the caller gives no timeout.
const defaultRequestTimeout = 5 * time.Second

// InstanceInfo describes one tracked instance.
type InstanceInfo struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Origin    string   `json:"origin"`
	PropsKeys []string `json:"propsKeys"`
}

// controllerTools binds tool handlers to one Controller.
type controllerTools struct {
	ctrl *controller.Controller
}

// NewControllerServer creates a ToolServer exposing ctrl through the list_instances,
// emit, request, get_props and set_prop tools.
func NewControllerServer(ctrl *controller.Controller, version string) *ToolServer {
	s := NewToolServer(nil, "siteos", version)
	RegisterControllerTools(s, ctrl)

	return s
}

// RegisterControllerTools adds the controller tools to s.
func RegisterControllerTools(s *ToolServer, ctrl *controller.Controller) {
	t := &controllerTools{ctrl: ctrl}

	instanceID := &jsonschema.Schema{Type: "string", Description: "Instance id from list_instances"}
	eventName := &jsonschema.Schema{Type: "string", Description: "Event name"}
	eventArgs := &jsonschema.Schema{Type: "array", Description: "Positional event arguments"}

	s.AddTool(NewTool("list_instances",
		"List the guest instances the controller tracks",
		ObjectSchema(nil),
	), t.listInstances)

	s.AddTool(NewTool("emit",
		"Send an event to one instance, or to every instance when instance_id is omitted",
		ObjectSchema(map[string]*jsonschema.Schema{
			"instance_id": instanceID,
			"name":        eventName,
			"args":        eventArgs,
		}, "name"),
	), t.emit)

	s.AddTool(NewTool("request",
		"Send a request and wait for the first answer",
		ObjectSchema(map[string]*jsonschema.Schema{
			"instance_id": instanceID,
			"name":        eventName,
			"args":        eventArgs,
			"timeout_ms":  {Type: "integer", Description: "How long to wait for the answer"},
		}, "name"),
	), t.request)

	s.AddTool(NewTool("get_props",
		"Read the props shared with an instance",
		ObjectSchema(map[string]*jsonschema.Schema{
			"instance_id": instanceID,
		}, "instance_id"),
	), t.getProps)

	s.AddTool(NewTool("set_prop",
		"Set one prop on an instance; the guest observes the change",
		ObjectSchema(map[string]*jsonschema.Schema{
			"instance_id": instanceID,
			"key":         {Type: "string"},
			"value":       {Description: "Any JSON value"},
		}, "instance_id", "key", "value"),
	), t.setProp)
}

func (t *controllerTools) listInstances(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instances := t.ctrl.Instances()

	infos := make([]InstanceInfo, 0, len(instances))
	for _, inst := range instances {
		infos = append(infos, InstanceInfo{
			ID:        inst.ID(),
			Kind:      inst.Kind().String(),
			Origin:    inst.Origin(),
			PropsKeys: inst.Props().Keys(),
		})
	}

	return JSONResult(infos)
}

func (t *controllerTools) emit(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := ParseArguments(req)
	if err != nil {
		return nil, err
	}

	name, eventArgs, err := eventArguments(args)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	emit := t.ctrl.Emit

	if id, ok := args["instance_id"].(string); ok && id != "" {
		inst, err := t.instance(id)
		if err != nil {
			return ErrorResult(err.Error()), nil
		}

		emit = inst.Emit
	}

	if err := emit(ctx, name, eventArgs...); err != nil {
		return ErrorResult(err.Error()), nil
	}

	return TextResult("sent " + name), nil
}

func (t *controllerTools) request(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := ParseArguments(req)
	if err != nil {
		return nil, err
	}

	name, eventArgs, err := eventArguments(args)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	timeout := defaultRequestTimeout
	if ms, ok := args["timeout_ms"].(float64); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request := t.ctrl.Request

	if id, ok := args["instance_id"].(string); ok && id != "" {
		inst, err := t.instance(id)
		if err != nil {
			return ErrorResult(err.Error()), nil
		}

		request = inst.Request
	}

	result, err := request(ctx, name, eventArgs...)
	if err != nil {
		return requestError(name, err), nil
	}

	return JSONResult(result)
}

func (t *controllerTools) getProps(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := ParseArguments(req)
	if err != nil {
		return nil, err
	}

	id, _ := args["instance_id"].(string)

	inst, err := t.instance(id)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	return JSONResult(inst.Props().Snapshot())
}

func (t *controllerTools) setProp(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := ParseArguments(req)
	if err != nil {
		return nil, err
	}

	id, _ := args["instance_id"].(string)

	key, ok := args["key"].(string)
	if !ok || key == "" {
		return ErrorResult("key is required"), nil
	}

	inst, err := t.instance(id)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	if err := inst.Props().Set(key, args["value"]); err != nil {
		return ErrorResult(err.Error()), nil
	}

	return JSONResult(inst.Props().Snapshot())
}

func (t *controllerTools) instance(id string) (*controller.Instance, error) {
	inst, ok := t.ctrl.Instance(id)
	if !ok {
		return nil, fmt.Errorf("unknown instance %q", id)
	}

	return inst, nil
}

func eventArguments(args map[string]any) (string, []any, error) {
	name, ok := args["name"].(string)
	if !ok || name == "" {
		return "", nil, errors.New("name is required")
	}

	var eventArgs []any

	if raw, ok := args["args"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return "", nil, errors.New("args must be an array")
		}

		eventArgs = list
	}

	return name, eventArgs, nil
}

func requestError(name string, err error) *mcp.CallToolResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorResult(fmt.Sprintf("request %s timed out", name))
	}

	return ErrorResult(fmt.Sprintf("request %s: %v", name, err))
}

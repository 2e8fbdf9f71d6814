package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jakegut/quickwit/kernel/engine"
	"github.com/jakegut/quickwit/kernel/metastore"
	"github.com/jakegut/quickwit/kernel/model"
)

// ObserveFunc reports the live janitor service's state. Nil when the MCP
// server runs without an attached service.
type ObserveFunc func() engine.JanitorServiceState

type JanitorMCPServer struct {
	server    *server.MCPServer
	metastore metastore.Metastore
	observe   ObserveFunc
}

func NewJanitorMCPServer(ms metastore.Metastore, observe ObserveFunc) *JanitorMCPServer {
	srv := server.NewMCPServer(
		"Quickwit Janitor",
		"v1.0.0",
		server.WithResourceCapabilities(true, true),
		server.WithToolCapabilities(true),
	)

	js := &JanitorMCPServer{
		server:    srv,
		metastore: ms,
		observe:   observe,
	}

	js.registerTools()
	js.registerResources()

	return js
}

func (js *JanitorMCPServer) ServeStdio() error {
	return server.ServeStdio(js.server)
}

func (js *JanitorMCPServer) registerTools() {
	listTool := mcp.NewTool("list_indexes",
		mcp.WithDescription("List all indexes known to the metastore"),
	)
	js.server.AddTool(listTool, js.listIndexesHandler)

	createTool := mcp.NewTool("create_index",
		mcp.WithDescription("Register a new index in the metastore"),
		mcp.WithString("index_id",
			mcp.Description("Unique id of the index"),
			mcp.Required(),
		),
		mcp.WithString("index_uri",
			mcp.Description("Storage location of the index, e.g. s3://bucket/prefix"),
			mcp.Required(),
		),
	)
	js.server.AddTool(createTool, js.createIndexHandler)

	deleteTool := mcp.NewTool("delete_index",
		mcp.WithDescription("Remove an index from the metastore; its delete pipeline stops on the next pass"),
		mcp.WithString("index_id",
			mcp.Description("Id of the index to remove"),
			mcp.Required(),
		),
	)
	js.server.AddTool(deleteTool, js.deleteIndexHandler)

	deleteTaskTool := mcp.NewTool("create_delete_task",
		mcp.WithDescription("Queue a delete query against an index"),
		mcp.WithString("index_id",
			mcp.Description("Id of the target index"),
			mcp.Required(),
		),
		mcp.WithString("query_ast",
			mcp.Description("Query selecting the documents to delete"),
			mcp.Required(),
		),
	)
	js.server.AddTool(deleteTaskTool, js.createDeleteTaskHandler)
}

func (js *JanitorMCPServer) registerResources() {
	resource := mcp.NewResource("janitor://status", "Janitor Status",
		mcp.WithResourceDescription("Index count and running delete pipelines"),
		mcp.WithMIMEType("application/json"),
	)
	js.server.AddResource(resource, js.statusHandler)
}

func (js *JanitorMCPServer) listIndexesHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	descriptors, err := js.metastore.ListActiveIndexes(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list indexes: %v", err)), nil
	}

	type indexInfo struct {
		IndexID  string `json:"index_id"`
		Uid      string `json:"uid"`
		IndexURI string `json:"index_uri"`
	}
	infos := make([]indexInfo, 0, len(descriptors))
	for _, desc := range descriptors {
		infos = append(infos, indexInfo{
			IndexID:  desc.IndexID,
			Uid:      desc.Uid.String(),
			IndexURI: desc.IndexURI,
		})
	}

	payload, err := json.Marshal(map[string]interface{}{
		"count":   len(infos),
		"indexes": infos,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (js *JanitorMCPServer) createIndexHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	indexID, err := request.RequireString("index_id")
	if err != nil {
		return mcp.NewToolResultError("index_id argument is required"), nil
	}
	indexURI, err := request.RequireString("index_uri")
	if err != nil {
		return mcp.NewToolResultError("index_uri argument is required"), nil
	}

	desc, err := js.metastore.CreateIndex(ctx, indexID, indexURI)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create index: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Index '%s' created with uid '%s'.", desc.IndexID, desc.Uid)), nil
}

func (js *JanitorMCPServer) deleteIndexHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	indexID, err := request.RequireString("index_id")
	if err != nil {
		return mcp.NewToolResultError("index_id argument is required"), nil
	}

	if err := js.metastore.DeleteIndex(ctx, indexID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete index: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Index '%s' deleted.", indexID)), nil
}

func (js *JanitorMCPServer) createDeleteTaskHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	indexID, err := request.RequireString("index_id")
	if err != nil {
		return mcp.NewToolResultError("index_id argument is required"), nil
	}
	queryAst, err := request.RequireString("query_ast")
	if err != nil {
		return mcp.NewToolResultError("query_ast argument is required"), nil
	}

	desc, err := js.metastore.IndexMetadata(ctx, indexID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch index: %v", err)), nil
	}
	task, err := js.metastore.CreateDeleteTask(ctx, model.DeleteQuery{
		IndexUid: desc.Uid,
		QueryAst: queryAst,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create delete task: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Delete task %d queued for index '%s'.", task.Opstamp, indexID)), nil
}

func (js *JanitorMCPServer) statusHandler(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	descriptors, err := js.metastore.ListActiveIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}

	status := map[string]interface{}{
		"num_indexes": len(descriptors),
	}
	if js.observe != nil {
		status["num_running_pipelines"] = js.observe().NumRunningPipelines
	}
	payload, err := json.Marshal(status)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "janitor://status",
			MIMEType: "application/json",
			Text:     string(payload),
		},
	}, nil
}

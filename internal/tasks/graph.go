package tasks

import (
	"context"

	"daycard/internal/graph"
	"daycard/internal/model"
)

// GraphRemote mirrors the store to a Microsoft To Do list, resolved by
// display name on every call (the client caches the lookup).
type GraphRemote struct {
	client *graph.Client
	list   string
}

func NewGraphRemote(client *graph.Client, list string) *GraphRemote {
	return &GraphRemote{client: client, list: list}
}

func (r *GraphRemote) List(ctx context.Context) []model.Task {
	listID, ok := r.client.ListID(ctx, r.list)
	if !ok {
		return []model.Task{}
	}
	remote := r.client.Tasks(ctx, listID)
	out := make([]model.Task, 0, len(remote))
	for _, t := range remote {
		out = append(out, graph.ToTask(t))
	}
	return out
}

func (r *GraphRemote) Create(ctx context.Context, title string, p model.Priority) (model.Task, bool) {
	listID, ok := r.client.ListID(ctx, r.list)
	if !ok {
		return model.Task{}, false
	}
	created := r.client.CreateTask(ctx, listID, title, p)
	if created == nil {
		return model.Task{}, false
	}
	return graph.ToTask(*created), true
}

func (r *GraphRemote) SetCompleted(ctx context.Context, id string, completed bool) bool {
	listID, ok := r.client.ListID(ctx, r.list)
	if !ok {
		return false
	}
	return r.client.UpdateTask(ctx, listID, id, graph.TaskUpdate{Status: graph.StatusFor(completed)}) != nil
}

func (r *GraphRemote) Delete(ctx context.Context, id string) bool {
	listID, ok := r.client.ListID(ctx, r.list)
	if !ok {
		return false
	}
	return r.client.DeleteTask(ctx, listID, id)
}

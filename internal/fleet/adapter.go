// README: Fleet sync operations in the provider's task vocabulary.
package fleet

import (
	"context"
	"encoding/json"
	"fmt"
)

// TaskStatus is the provider's status-code vocabulary for task updates.
type TaskStatus string

const (
	TaskStarted    TaskStatus = "1"
	TaskSuccessful TaskStatus = "2"
	TaskAccepted   TaskStatus = "7"
	TaskDeclined   TaskStatus = "8"
)

// Adapter is the boundary the orchestrator depends on. A returned
// *RejectionError means the provider explicitly refused; ErrNoResponse
// means it never answered.
type Adapter interface {
	OnOffDuty(ctx context.Context, riderID int64, available bool) error
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus) error
	RetrieveDeliveryTaskID(ctx context.Context, relationshipKey string) (string, error)
}

// OnOffDuty flips the rider's availability on the provider side.
func (c *Client) OnOffDuty(ctx context.Context, riderID int64, available bool) error {
	isAvailable := 0
	if available {
		isAvailable = 1
	}
	resp, err := c.call(ctx, pathChangeAvailability, map[string]any{
		"fleet_ids":    []int64{riderID},
		"is_available": isAvailable,
	})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return &RejectionError{Status: resp.Status, Message: resp.Message}
	}
	return nil
}

// UpdateTaskStatus marks a single provider task with the given status.
func (c *Client) UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus) error {
	resp, err := c.call(ctx, pathUpdateTaskStatus, map[string]any{
		"job_id":     taskID,
		"job_status": string(status),
	})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return &RejectionError{Status: resp.Status, Message: resp.Message}
	}
	return nil
}

// RetrieveDeliveryTaskID resolves the delivery leg's task id from the
// pickup/delivery relationship key. The provider returns the related tasks
// as a pickup/delivery pair; the delivery leg is the second entry.
func (c *Client) RetrieveDeliveryTaskID(ctx context.Context, relationshipKey string) (string, error) {
	resp, err := c.call(ctx, pathGetRelatedTasks, map[string]any{
		"pickup_delivery_relationship": relationshipKey,
	})
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", &RejectionError{Status: resp.Status, Message: resp.Message}
	}

	var tasks []struct {
		JobID json.Number `json:"job_id"`
	}
	if err := json.Unmarshal(resp.Data, &tasks); err != nil {
		return "", fmt.Errorf("fleet: unmarshal related tasks: %w", err)
	}
	if len(tasks) < 2 {
		return "", fmt.Errorf("fleet: expected pickup and delivery tasks, got %d", len(tasks))
	}
	return tasks[1].JobID.String(), nil
}

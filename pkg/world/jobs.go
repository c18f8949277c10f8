package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/worldforge/server/pkg/durable"
	"github.com/worldforge/server/pkg/llmgateway"
	"github.com/worldforge/server/pkg/models"
)

const backgroundJobTimeout = 10 * time.Minute

// runImageJob obtains an image for room, uploads it, and broadcasts the
// update, returning the cache-busted URL it persisted ("" on failure,
// with the room's image_status left at error). On failure it marks the
// room's image_status=error and still broadcasts.
func (e *Engine) runImageJob(roomID, imagePrompt string) string {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundJobTimeout)
	defer cancel()

	url := e.llm.GenerateRoomImage(ctx, imagePrompt)
	room, err := e.store.Durable.GetRoom(ctx, roomID)
	if err != nil {
		e.log.Error("image job: room vanished before completion", "room_id", roomID, "error", err)
		return ""
	}

	if url == "" {
		room.ImageStatus = models.ImageStatusError
		if err := e.store.Durable.PutRoom(ctx, room); err != nil {
			e.log.Error("image job: failed to persist error status", "room_id", roomID, "error", err)
		}
		e.hub.BroadcastToRoom(room.ID, roomUpdateMessage(room), "")
		return ""
	}

	cacheBusted := fmt.Sprintf("%s?v=%d", url, time.Now().Unix())
	room.ImageURL = cacheBusted
	room.ImageStatus = models.ImageStatusReady
	if err := e.store.Durable.PutRoom(ctx, room); err != nil {
		e.log.Error("image job: failed to persist ready status", "room_id", roomID, "error", err)
		return ""
	}
	e.hub.BroadcastToRoom(room.ID, roomUpdateMessage(room), "")
	return cacheBusted
}

// runImageThen3DJob runs the image job to completion, then submits the
// 3D-model job against the resulting image URL. 3D generation is
// image-to-3D, so it cannot start until a room image exists.
func (e *Engine) runImageThen3DJob(roomID, imagePrompt string) {
	imageURL := e.runImageJob(roomID, imagePrompt)
	if imageURL == "" || !e.llm.Model3DEnabled() {
		return
	}
	e.run3DModelJob(roomID, imageURL)
}

// run3DModelJob mirrors the provider's queue-and-poll contract: submit
// once against the room's finished image, then poll on a fixed interval
// until completed, failed, or the job timeout elapses. 3D model
// generation is best-effort and entirely optional; any failure to
// submit, a failed job, or a timeout simply leaves ModelURL empty.
func (e *Engine) run3DModelJob(roomID, imageURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundJobTimeout)
	defer cancel()

	room, err := e.store.Durable.GetRoom(ctx, roomID)
	if errors.Is(err, durable.ErrNotFound) {
		return
	}
	if err != nil {
		e.log.Error("3d job: failed to load room", "room_id", roomID, "error", err)
		return
	}

	requestID, err := e.llm.Submit3DModel(ctx, imageURL)
	if err != nil {
		e.log.Warn("3d job: submit failed", "room_id", roomID, "error", err)
		return
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.log.Warn("3d job: timed out waiting for completion", "room_id", roomID, "request_id", requestID)
			return
		case <-ticker.C:
			status, resultURL, err := e.llm.Poll3DModel(ctx, requestID)
			if err != nil {
				e.log.Warn("3d job: poll failed", "room_id", roomID, "request_id", requestID, "error", err)
				return
			}
			switch status {
			case llmgateway.ModelJobCompleted:
				room.ModelURL = fmt.Sprintf("%s?v=%d", resultURL, time.Now().Unix())
				if err := e.store.Durable.PutRoom(ctx, room); err != nil {
					e.log.Error("3d job: failed to persist model url", "room_id", roomID, "error", err)
					return
				}
				e.hub.BroadcastToRoom(room.ID, roomUpdateMessage(room), "")
				return
			case llmgateway.ModelJobFailed:
				e.log.Warn("3d job: provider reported failure", "room_id", roomID, "request_id", requestID)
				return
			}
		}
	}
}

// roomUpdateMessage wraps a room snapshot in the room_update envelope
// clients expect, always the complete room, never a
// partial diff.
func roomUpdateMessage(room *models.Room) any {
	return map[string]any{
		"type": "room_update",
		"room": room.Clone(),
	}
}

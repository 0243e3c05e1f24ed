// Package worker provides a NATS worker that turns processed text into speech.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/mimic3-tts/internal/core"
	"github.com/book-expert/mimic3-tts/internal/tts"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const handleMessageTimeout = 2 * time.Minute

const audioKeySuffix = ".wav"

// Audio object metadata keys.
const (
	MetaSampleRate  = "sample_rate"
	MetaChannels    = "channels"
	MetaSampleWidth = "sample_width"
	MetaEncoding    = "encoding"
	MetaVoice       = "voice"
	MetaWorkflowID  = "workflow_id"
)

var (
	// ErrTextKeyEmpty indicates an event without a text object key.
	ErrTextKeyEmpty = errors.New("text key cannot be empty")
	// ErrTextEmpty indicates that the downloaded text object is empty.
	ErrTextEmpty = errors.New("downloaded text is empty")
)

// NatsWorker listens for text-processed events on a NATS subject and
// answers each with the key of the synthesized audio.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	replySubject   string
	textStore      core.ObjectStore
	audioStore     core.ObjectStore
	synthesizer    core.Synthesizer
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. When replySubject is
// set, every AudioChunkCreatedEvent is also published there.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject, replySubject string,
	textStore, audioStore core.ObjectStore,
	synthesizer core.Synthesizer,
	log *logger.Logger,
) (*NatsWorker, error) {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		replySubject:   replySubject,
		textStore:      textStore,
		audioStore:     audioStore,
		synthesizer:    synthesizer,
		log:            log,
	}, nil
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := w.parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate event: %v", err)

		return
	}

	audioKey, processErr := w.processTTSJob(ctx, event)
	if processErr != nil {
		w.logJobFailure(event, processErr)

		return
	}

	replyEvent := &events.AudioChunkCreatedEvent{
		Header:     event.Header,
		AudioKey:   audioKey,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)

		return
	}

	w.log.Info("Page %d/%d of workflow %s synthesized to %s",
		event.PageNumber, event.TotalPages, event.Header.WorkflowID, audioKey)
}

// processTTSJob downloads the text, synthesizes it and uploads the audio.
func (w *NatsWorker) processTTSJob(ctx context.Context, event *events.TextProcessedEvent) (string, error) {
	textData, err := w.textStore.Download(ctx, event.TextKey)
	if err != nil {
		return "", fmt.Errorf("failed to download text data for key '%s': %w", event.TextKey, err)
	}

	if len(textData) == 0 {
		return "", fmt.Errorf("%w: key '%s'", ErrTextEmpty, event.TextKey)
	}

	options := map[string]any{}
	if event.Voice != "" {
		options[tts.OptVoice] = event.Voice
	}

	result, err := w.synthesizer.SynthesizeText(ctx, string(textData), options)
	if err != nil {
		return "", fmt.Errorf("failed to synthesize text: %w", err)
	}

	audioKey := uuid.NewString() + audioKeySuffix

	err = w.audioStore.Upload(ctx, audioKey, result.Audio, audioMetadata(result, event))
	if err != nil {
		return "", fmt.Errorf("failed to upload audio data for key '%s': %w", audioKey, err)
	}

	return audioKey, nil
}

// logJobFailure logs caller-side failures as warnings, since resending the
// same event cannot succeed, and engine failures as errors.
func (w *NatsWorker) logJobFailure(event *events.TextProcessedEvent, err error) {
	if tts.IsCallerError(err) {
		w.log.Warn("Rejected TTS job for workflow %s: %v", event.Header.WorkflowID, err)

		return
	}

	w.log.Error("Failed to process TTS job for workflow %s: %v", event.Header.WorkflowID, err)
}

func audioMetadata(result *tts.SynthesisResult, event *events.TextProcessedEvent) map[string]string {
	return map[string]string{
		MetaSampleRate:  strconv.Itoa(result.Format.SampleRate),
		MetaChannels:    strconv.Itoa(result.Format.Channels),
		MetaSampleWidth: strconv.Itoa(result.Format.SampleWidth),
		MetaEncoding:    result.Format.Encoding,
		MetaVoice:       event.Voice,
		MetaWorkflowID:  event.Header.WorkflowID,
	}
}

// publishReplyEvent marshals the AudioChunkCreatedEvent, answers the request
// and announces it on the reply subject.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *events.AudioChunkCreatedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	if msg.Reply != "" {
		err = msg.Respond(replyData)
		if err != nil {
			return fmt.Errorf("failed to respond with reply event: %w", err)
		}
	}

	if w.replySubject != "" {
		err = w.natsConnection.Publish(w.replySubject, replyData)
		if err != nil {
			return fmt.Errorf("failed to publish reply event to %s: %w", w.replySubject, err)
		}
	}

	return nil
}

func (w *NatsWorker) parseAndValidateEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.TextKey == "" {
		return nil, ErrTextKeyEmpty
	}

	return &event, nil
}

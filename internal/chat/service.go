// Package chat turns an addressed message into Bella's reply: image requests,
// attachment handling, prompt assembly, memory bookkeeping and the
// unfiltered-thought gate.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"bella/internal/ai"
	"bella/internal/lexicon"
	"bella/internal/mind"
	"bella/internal/persona"
	"bella/pkg/util"
)

// ImageGenerator renders a prompt to a temporary file.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, seed *int) (string, error)
}

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, name string) (string, error)
}

// Responder delivers output back to wherever the message came from.
type Responder interface {
	Send(ctx context.Context, text string) error
	SendFile(ctx context.Context, path string) error
}

// Attachment is a file attached to a message.
type Attachment struct {
	Name        string
	ContentType string
	URL         string
}

// Message is an addressed message, already stripped of Bella's name.
type Message struct {
	UserID      string
	DisplayName string
	Text        string
	IsOwner     bool
	Attachments []Attachment
}

// Options wires a Service.
type Options struct {
	Store            *mind.Store
	Provider         ai.Provider
	Images           ImageGenerator
	Transcriber      Transcriber
	Persona          *persona.Persona
	HTTPClient       *http.Client
	UnfilteredChance float64
	Rand             func() float64
}

// Service answers addressed messages.
type Service struct {
	opts Options
	log  *slog.Logger
}

// NewService builds a Service. Store, Provider and Persona are required.
func NewService(opts Options, logger *slog.Logger) (*Service, error) {
	if opts.Store == nil || opts.Provider == nil || opts.Persona == nil {
		return nil, errors.New("chat: store, provider and persona are required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{opts: opts, log: logger.With("logger", "chat")}, nil
}

// Handle answers msg through out. Failures are logged, kept in the error log
// and reported to the user; the returned error is the same failure.
func (s *Service) Handle(ctx context.Context, msg Message, out Responder) error {
	err := s.handle(ctx, msg, out)
	if err == nil {
		return nil
	}
	s.log.Error("failed to answer message", "user", msg.UserID, tint.Err(err))
	if lerr := s.opts.Store.LogError("message", msg.UserID, err); lerr != nil {
		s.log.Warn("failed to record error", tint.Err(lerr))
	}
	if serr := out.Send(ctx, "Error: "+err.Error()); serr != nil {
		s.log.Warn("failed to send error reply", tint.Err(serr))
	}
	return err
}

func (s *Service) handle(ctx context.Context, msg Message, out Responder) error {
	store := s.opts.Store
	start := time.Now()

	if s.opts.Images != nil {
		if prompt, ok := ImagePrompt(msg.Text); ok {
			return s.generateImage(ctx, msg, prompt, out)
		}
	}

	if err := store.TouchInteraction(msg.UserID); err != nil {
		return err
	}
	if msg.DisplayName != "" && store.UserName(msg.UserID) == mind.DefaultUserName {
		if err := store.SetUserName(msg.UserID, msg.DisplayName); err != nil {
			return err
		}
	}

	content, images := s.processAttachments(ctx, msg)

	system := s.systemInstruction(msg, content)
	reply, err := s.opts.Provider.Generate(ctx, ai.Request{System: system, User: content, Images: images})
	if err != nil {
		return err
	}

	if _, err := store.RecordConversation(msg.UserID, content, reply, msg.IsOwner); err != nil {
		return fmt.Errorf("failed to record conversation: %w", err)
	}
	if err := store.RecordLatency("reply", time.Since(start)); err != nil {
		s.log.Warn("failed to record latency", tint.Err(err))
	}

	if thought, ok := store.UnfilteredReply(content); ok && (msg.IsOwner || s.opts.Rand() < s.opts.UnfilteredChance) {
		if err := store.MarkExpressed(); err != nil {
			s.log.Warn("failed to mark thought expressed", tint.Err(err))
		}
		reply = thought
	}
	return out.Send(ctx, reply)
}

func (s *Service) systemInstruction(msg Message, content string) string {
	store := s.opts.Store
	facts := persona.Facts{
		UserName:      store.UserName(msg.UserID),
		Relationship:  store.Relationship(msg.UserID),
		BehaviorType:  store.BehaviorType(msg.UserID),
		History:       store.ConversationSummary(msg.UserID),
		OwnerCommands: store.ActiveOwnerCommandsSummary(),
		Punishments:   store.ActivePunishmentsSummary(),
		BehaviorRules: store.BehaviorRulesSummary(msg.UserID),
		UserContext:   store.UserContextSummary(msg.UserID),
		Sentiment:     lexicon.Sentiment(content),
		Topics:        lexicon.Topics(content),
		Analytics:     store.UserAnalytics(msg.UserID),
	}
	if msg.IsOwner {
		return s.opts.Persona.OwnerInstruction(facts)
	}
	return s.opts.Persona.MemberInstruction(facts)
}

type attachmentResult struct {
	image      []byte
	transcript string
}

// processAttachments prepares images for the vision model and appends voice
// transcripts to the text. A failing attachment is logged and skipped.
func (s *Service) processAttachments(ctx context.Context, msg Message) (string, [][]byte) {
	if len(msg.Attachments) == 0 {
		return msg.Text, nil
	}

	results := make([]attachmentResult, len(msg.Attachments))
	_ = util.Parallel(ctx, msg.Attachments, 3, func(ctx context.Context, i int, a Attachment) error {
		res, err := s.processAttachment(ctx, a)
		if err != nil {
			s.log.Warn("failed to process attachment", "name", a.Name, "type", a.ContentType, tint.Err(err))
			return nil
		}
		results[i] = res
		return nil
	})

	content := msg.Text
	var images [][]byte
	for _, r := range results {
		switch {
		case r.image != nil:
			images = append(images, r.image)
			s.recordMedia(msg.UserID, mind.MediaImages, mind.MediaContext{Type: "image"})
		case r.transcript != "":
			content = strings.TrimSpace(content + " " + r.transcript)
			s.recordMedia(msg.UserID, mind.MediaVoice, mind.MediaContext{Type: "voice", Transcript: r.transcript})
		}
	}
	return content, images
}

func (s *Service) processAttachment(ctx context.Context, a Attachment) (attachmentResult, error) {
	switch {
	case strings.HasPrefix(a.ContentType, "image/"):
		data, err := ai.Fetch(ctx, s.opts.HTTPClient, a.URL)
		if err != nil {
			return attachmentResult{}, err
		}
		img, err := ai.PrepareImage(data)
		if err != nil {
			return attachmentResult{}, err
		}
		return attachmentResult{image: img}, nil
	case strings.HasPrefix(a.ContentType, "audio/") && s.opts.Transcriber != nil:
		data, err := ai.Fetch(ctx, s.opts.HTTPClient, a.URL)
		if err != nil {
			return attachmentResult{}, err
		}
		text, err := s.opts.Transcriber.Transcribe(ctx, data, a.Name)
		if err != nil {
			return attachmentResult{}, err
		}
		return attachmentResult{transcript: text}, nil
	}
	return attachmentResult{}, nil
}

func (s *Service) recordMedia(userID, kind string, mc mind.MediaContext) {
	if _, err := s.opts.Store.AddMediaInteraction(userID, kind, mc); err != nil {
		s.log.Warn("failed to record media interaction", "kind", kind, tint.Err(err))
	}
}

// Imagine generates an image for prompt, uploads it and records the
// interaction. It is shared by name-addressed requests and the imagine command.
func (s *Service) Imagine(ctx context.Context, userID, prompt string, out Responder) error {
	return s.generateImage(ctx, Message{UserID: userID}, prompt, out)
}

func (s *Service) generateImage(ctx context.Context, msg Message, prompt string, out Responder) error {
	if s.opts.Images == nil {
		return errors.New("image generation is not configured")
	}
	arabic := lexicon.ContainsArabic(prompt)
	announce, sorry, lang := "Generating image for: "+prompt+" 🎨", "Sorry, I couldn't generate that image 😢", "english"
	if arabic {
		announce, sorry, lang = "جاري إنشاء الصورة: "+prompt+" 🎨", "عذراً، لم أتمكن من إنشاء الصورة 😢", "arabic"
	}
	if err := out.Send(ctx, announce); err != nil {
		return err
	}

	path, err := s.opts.Images.Generate(ctx, prompt, nil)
	if err != nil {
		s.log.Warn("image generation failed", "user", msg.UserID, tint.Err(err))
		if lerr := s.opts.Store.LogError("image", msg.UserID, err); lerr != nil {
			s.log.Warn("failed to record error", tint.Err(lerr))
		}
		return out.Send(ctx, sorry)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("failed to remove generated image", "path", path, tint.Err(err))
		}
	}()

	if err := out.SendFile(ctx, path); err != nil {
		return fmt.Errorf("failed to upload image: %w", err)
	}
	s.recordMedia(msg.UserID, mind.MediaImages, mind.MediaContext{Type: "generated", Prompt: prompt, Language: lang})
	return nil
}

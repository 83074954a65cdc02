package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/logger"
)

func jsonRecord(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	ExpectWithOffset(1, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)).To(Succeed())
	return parsed
}

var _ = Describe("New", func() {
	It("writes text records at info level by default", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf))
		l.Info("stream opened", "chat_id", "chat-1")
		l.Debug("hidden")

		Expect(buf.String()).To(ContainSubstring("stream opened"))
		Expect(buf.String()).To(ContainSubstring("chat_id=chat-1"))
		Expect(buf.String()).NotTo(ContainSubstring("hidden"))
	})

	It("emits debug records with WithDebug", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithDebug(true))
		l.Debug("session state changed", "state", "streaming")

		Expect(buf.String()).To(ContainSubstring("session state changed"))
	})

	It("writes JSON records with bound attributes and groups", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
		l.With("project_id", "proj-1").WithGroup("event").Info("dropping malformed event", "type", "token")

		record := jsonRecord(&buf)
		Expect(record["msg"]).To(Equal("dropping malformed event"))
		Expect(record["project_id"]).To(Equal("proj-1"))
		Expect(record["event"]).To(HaveKeyWithValue("type", "token"))
	})

	It("records the caller with WithSource", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithSource(true))
		l.Info("with source")

		source, ok := jsonRecord(&buf)["source"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(source["file"]).To(HaveSuffix("logger_test.go"))
	})

	It("prefers the pretty handler over JSON", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true), logger.WithJSON(true))
		l.Info("backend started")

		Expect(buf.String()).To(ContainSubstring("backend started"))
		Expect(json.Valid(bytes.TrimSpace(buf.Bytes()))).To(BeFalse())
	})
})

var _ = Describe("Multi", func() {
	It("pairs a console logger with a JSON file logger", func() {
		var console, file bytes.Buffer
		l := logger.Multi(
			logger.New(logger.WithWriter(&console), logger.WithPretty(true)),
			logger.New(logger.WithWriter(&file), logger.WithJSON(true)),
		)

		l.With("chat_id", "chat-1").Info("stream opened")

		Expect(console.String()).To(ContainSubstring("stream opened"))
		Expect(jsonRecord(&file)["chat_id"]).To(Equal("chat-1"))
	})

	It("lets each handler apply its own level", func() {
		var info, debug bytes.Buffer
		l := logger.Multi(
			logger.New(logger.WithWriter(&info)),
			logger.New(logger.WithWriter(&debug), logger.WithDebug(true)),
		)

		Expect(l.Handler().Enabled(context.Background(), slog.LevelDebug)).To(BeTrue())
		l.Debug("discarded partial trailing frame")

		Expect(info.String()).To(BeEmpty())
		Expect(debug.String()).To(ContainSubstring("discarded partial trailing frame"))
	})

	It("keeps groups on every handler", func() {
		var a, b bytes.Buffer
		l := logger.Multi(
			logger.New(logger.WithWriter(&a), logger.WithJSON(true)),
			logger.New(logger.WithWriter(&b), logger.WithJSON(true)),
		)
		l.WithGroup("request").Info("processed", "method", "POST")

		Expect(jsonRecord(&a)["request"]).To(HaveKeyWithValue("method", "POST"))
		Expect(jsonRecord(&b)["request"]).To(HaveKeyWithValue("method", "POST"))
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		h := logger.Nop().Handler()
		for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
			Expect(h.Enabled(context.Background(), level)).To(BeFalse())
		}
	})
})

var _ = Describe("OrNop", func() {
	It("substitutes a nop logger for nil", func() {
		l := logger.OrNop(nil)
		Expect(l).NotTo(BeNil())
		Expect(func() { l.With("chat_id", "chat-1").Error("ignored") }).NotTo(Panic())
		Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
	})

	It("keeps a real logger", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf))
		Expect(logger.OrNop(l)).To(BeIdenticalTo(l))

		logger.OrNop(l).Info("kept")
		Expect(buf.String()).To(ContainSubstring("kept"))
	})
})

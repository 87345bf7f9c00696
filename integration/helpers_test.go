package integration

import (
	"context"
	"time"

	. "github.com/onsi/gomega"

	"github.com/killallgit/huddle/pkg/config"
	"github.com/killallgit/huddle/pkg/controllers"
)

// runningSession is a session connected to a fake server
type runningSession struct {
	*controllers.Session
	cancel context.CancelFunc
	done   chan error
}

func testConfig(url, user string) *config.Config {
	return &config.Config{
		API: config.APIConfig{URL: url, Timeout: 5 * time.Second},
		Channel: config.ChannelConfig{
			Path: "/socket",
			Reconnect: config.ReconnectConfig{
				InitialInterval: 10 * time.Millisecond,
				MaxInterval:     100 * time.Millisecond,
				Multiplier:      2,
			},
		},
		Identity: config.IdentityConfig{UserID: user},
	}
}

func startSession(url, user string, policy string) *runningSession {
	cfg := testConfig(url, user)
	cfg.Store.MergePolicy = policy

	session, err := controllers.InitializeSession(&controllers.InitConfig{Config: cfg})
	Expect(err).NotTo(HaveOccurred())

	ctx, cancel := context.WithCancel(context.Background())
	rs := &runningSession{Session: session, cancel: cancel, done: make(chan error, 1)}
	go func() {
		rs.done <- session.Run(ctx)
	}()

	Eventually(session.Store.Connected).Should(BeTrue())
	return rs
}

func (rs *runningSession) stop() {
	rs.cancel()
	Eventually(rs.done, 5*time.Second).Should(Receive(BeNil()))
	rs.Close()
}

func controllersInput(memberIDs []string, name string) controllers.NewChatInput {
	return controllers.NewChatInput{MemberIDs: memberIDs, Name: name}
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/r1cksync/poils-cli/internal/api"
	"github.com/r1cksync/poils-cli/internal/config"
	"github.com/r1cksync/poils-cli/internal/session"
)

// app bundles the collaborators every command needs: loaded config, the
// typed backend client, the on-disk token store and the session built on
// top of them.
type app struct {
	cfg    config.Config
	client *api.Client
	tokens *session.FileTokenStore
	sess   *session.Session
	logger *slog.Logger
}

// cliNotifier routes session and controller notifications to the terminal.
type cliNotifier struct{}

func (cliNotifier) Success(msg string) { printSuccess("%s", msg) }
func (cliNotifier) Error(msg string)   { printError("%s", msg) }

// cliNavigator prints the next step instead of switching screens.
type cliNavigator struct{}

func (cliNavigator) ToChat()  { printStep("Run `poils chat` to start talking to your documents") }
func (cliNavigator) ToLogin() { printStep("Run `poils login` to sign in") }

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Log.Level)
	tokens := session.NewFileTokenStore(session.DefaultTokenPath())

	client, err := api.New(api.Options{
		BaseURL: cfg.API.BaseURL,
		Tokens:  tokens,
		Timeout: cfg.RequestTimeout(),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	sess := session.New(client, tokens, session.Options{
		Notifier:  cliNotifier{},
		Navigator: cliNavigator{},
		Logger:    logger,
	})

	return &app{
		cfg:    cfg,
		client: client,
		tokens: tokens,
		sess:   sess,
		logger: logger,
	}, nil
}

// requireAuth resolves the session and fails fast when nobody is signed in.
func (a *app) requireAuth(ctx context.Context) (api.User, error) {
	a.sess.Init(ctx)
	user, err := a.sess.Current()
	if err != nil {
		return api.User{}, fmt.Errorf("not signed in, run `poils login` first")
	}
	return user, nil
}

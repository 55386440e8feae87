// Command companion is a terminal front end for the companion API. It keeps
// the session in a local file so a restart picks up where it left off.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aicompanion/companion/internal/client"
	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/session"
	"github.com/aicompanion/companion/internal/pkg/config"
	"github.com/aicompanion/companion/pkg/logger"
)

const help = `commands:
  /login <email> <password>
  /register <email> <password> <name...>
  /logout
  /whoami
  /role individual|organization
  /name <new name...>
  /onboard
  /plans
  /quit
anything else is sent to the assistant`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: true, Service: "companion", Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log, os.Stdin, os.Stdout); err != nil {
		log.Error().Err(err).Msg("companion exited")
		os.Exit(1)
	}
}

type app struct {
	api     *client.Client
	session *session.Manager
	in      *bufio.Scanner
	out     io.Writer
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger, in io.Reader, out io.Writer) error {
	store := client.NewFileStore(cfg.SessionFile)
	deviceID := cfg.DeviceID
	if deviceID == "" {
		id, err := store.DeviceID()
		if err != nil {
			return err
		}
		deviceID = id
	}

	api := client.New(cfg.APIURL, deviceID, nil)
	mgr := session.New(api, store, session.WithQuota(cfg.Quota), session.WithLogger(log))
	defer mgr.Close()

	last := session.Status("")
	cancel := mgr.Subscribe(func(st session.State) {
		if st.Status() == last {
			return
		}
		last = st.Status()
		log.Debug().Str("status", string(last)).Msg("session changed")
	})
	defer cancel()

	if err := mgr.Bootstrap(ctx); err != nil {
		return err
	}

	a := &app{api: api, session: mgr, in: bufio.NewScanner(in), out: out}
	if id, ok := mgr.Identity(); ok {
		a.printf("Welcome back, %s.\n", id.Name)
	}
	if greeting, err := api.Greeting(ctx); err == nil {
		a.printf("assistant> %s\n", greeting.Text)
	} else {
		a.printf("assistant> %s\n", domain.Greeting)
	}
	if _, signedIn := mgr.AccessToken(); !signedIn {
		if left, _, err := api.Allowance(ctx, ""); err == nil {
			a.printf("(%d free message(s) left)\n", left)
		}
	}

	for {
		a.printf("> ")
		if !a.in.Scan() {
			return a.in.Err()
		}
		line := strings.TrimSpace(a.in.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}
		if err := a.handle(ctx, line); err != nil {
			a.printf("error: %s\n", describe(err))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) handle(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, "/") {
		return a.chat(ctx, line)
	}
	cmd, rest, _ := strings.Cut(line, " ")
	args := strings.Fields(rest)

	switch cmd {
	case "/help":
		a.printf("%s\n", help)
	case "/login":
		if len(args) != 2 {
			return errors.New("usage: /login <email> <password>")
		}
		id, err := a.session.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		a.printf("Signed in as %s.\n", id.Name)
	case "/register":
		if len(args) < 3 {
			return errors.New("usage: /register <email> <password> <name...>")
		}
		id, err := a.session.Register(ctx, args[0], args[1], strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		a.printf("Welcome, %s. Pick a role with /role, then /onboard.\n", id.Name)
	case "/logout":
		if token, ok := a.session.AccessToken(); ok {
			if err := a.api.Logout(ctx, token); err != nil {
				a.printf("warning: server logout failed: %s\n", describe(err))
			}
		}
		a.session.Logout(ctx)
		a.printf("Signed out.\n")
	case "/whoami":
		a.whoami()
	case "/role":
		if len(args) != 1 {
			return errors.New("usage: /role individual|organization")
		}
		return a.setRole(ctx, args[0])
	case "/name":
		if len(args) == 0 {
			return errors.New("usage: /name <new name...>")
		}
		return a.rename(ctx, strings.Join(args, " "))
	case "/onboard":
		return a.onboard(ctx)
	case "/plans":
		return a.plans(ctx)
	default:
		a.printf("%s\n", help)
	}
	return nil
}

func (a *app) chat(ctx context.Context, text string) error {
	token, signedIn := a.session.AccessToken()
	if !signedIn && !a.session.RemainingAnonymousChats().Allows() {
		a.printf("You've used your free messages. /register or /login to keep chatting.\n")
		return nil
	}

	reply, err := a.api.Chat(ctx, token, text)
	if errors.Is(err, domain.ErrChatQuotaExceeded) {
		a.printf("You've used your free messages. /register or /login to keep chatting.\n")
		return nil
	}
	if err != nil {
		return err
	}
	a.printf("assistant> %s\n", reply.Reply.Text)

	if signedIn {
		return nil
	}
	if err := a.session.IncrementAnonymousChatCount(); err != nil {
		return err
	}
	if left := a.session.RemainingAnonymousChats(); !left.Unlimited {
		a.printf("(%d free message(s) left)\n", left.Remaining)
	}
	return nil
}

func (a *app) whoami() {
	switch st := a.session.State().(type) {
	case session.SignedIn:
		id := st.Identity
		a.printf("%s <%s> role=%s onboarded=%t\n", id.Name, id.Email, id.Role, id.OnboardingCompleted)
	case session.Authenticating:
		a.printf("signing in (%s)\n", st.Operation)
	case session.SignedOut:
		a.printf("guest, %d chat(s) used\n", st.AnonymousChatCount)
	}
}

func (a *app) setRole(ctx context.Context, raw string) error {
	role, err := domain.ParseRole(raw)
	if err != nil {
		return err
	}
	token, ok := a.session.AccessToken()
	if !ok {
		return errors.New("sign in first")
	}
	if _, err := a.api.SetRole(ctx, token, role); err != nil {
		return err
	}
	if err := a.session.SetRole(role); err != nil {
		return err
	}
	a.printf("Role set to %s.\n", role)
	return nil
}

func (a *app) rename(ctx context.Context, name string) error {
	token, ok := a.session.AccessToken()
	if !ok {
		return errors.New("sign in first")
	}
	patch := domain.IdentityPatch{Name: &name}
	updated, err := a.api.UpdateProfile(ctx, token, patch)
	if err != nil {
		return err
	}
	patch.Name = &updated.Name
	return a.session.UpdateIdentity(patch)
}

func (a *app) onboard(ctx context.Context) error {
	token, ok := a.session.AccessToken()
	id, _ := a.session.Identity()
	if !ok {
		return errors.New("sign in first")
	}

	var err error
	switch id.Role {
	case domain.RoleOrganization:
		_, err = a.api.CompleteOrganization(ctx, token, domain.OrganizationProfile{
			CompanyName: a.ask("Company name"),
			Industry:    a.ask("Industry (" + strings.Join(domain.Industries, ", ") + ")"),
			Size:        domain.CompanySize(a.ask("Size [startup] (small, medium, large, enterprise)")),
			Description: a.ask("What does the company do"),
			Website:     a.ask("Website (optional)"),
			Goals:       a.askList("Goals, comma separated (" + strings.Join(domain.OrganizationGoals, ", ") + ")"),
		})
	default:
		_, err = a.api.CompleteIndividual(ctx, token, domain.IndividualProfile{
			Name:       a.ask("Name"),
			Profession: a.ask("Profession"),
			Interests:  a.askList("Interests, comma separated (" + strings.Join(domain.Interests, ", ") + ")"),
			Goals:      a.ask("What do you want to achieve"),
			Experience: domain.Experience(a.ask("Experience [beginner] (intermediate, advanced)")),
		})
	}
	if err != nil {
		return err
	}
	if err := a.session.CompleteOnboarding(); err != nil {
		return err
	}
	a.printf("Onboarding complete.\n")
	return nil
}

func (a *app) plans(ctx context.Context) error {
	plans, defaultID, err := a.api.Plans(ctx)
	if err != nil {
		return err
	}
	for _, p := range plans {
		marker := " "
		if p.ID == defaultID {
			marker = "*"
		}
		a.printf("%s %-12s %s\n", marker, p.Name, p.Description)
	}
	return nil
}

func (a *app) ask(prompt string) string {
	a.printf("%s: ", prompt)
	if !a.in.Scan() {
		return ""
	}
	return strings.TrimSpace(a.in.Text())
}

func (a *app) askList(prompt string) []string {
	var out []string
	for _, item := range strings.Split(a.ask(prompt), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// describe renders err for the prompt without the wrapping chain.
func describe(err error) string {
	var authErr *domain.AuthenticationError
	var regErr *domain.RegistrationError
	var misuse *domain.MisuseError
	switch {
	case errors.As(err, &authErr) && authErr.Reason != "":
		return "sign in failed: " + authErr.Reason
	case errors.As(err, &regErr) && regErr.Reason != "":
		return "registration failed: " + regErr.Reason
	case errors.As(err, &misuse):
		return "not available right now"
	case errors.Is(err, session.ErrSuperseded):
		return "cancelled"
	case errors.Is(err, domain.ErrOperationInFlight):
		return "already signing in"
	}
	return err.Error()
}

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"habitpact/config"
	"habitpact/internal/auth"
	"habitpact/internal/catalog"
	"habitpact/internal/database"
	"habitpact/internal/models"
	"habitpact/internal/repository"
	"habitpact/internal/service"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Context is shared by every command.
type Context struct {
	Config *config.Config
	Log    *logrus.Logger
	Out    io.Writer
}

func (c *Context) openDB() (*gorm.DB, error) {
	return database.NewDB(&c.Config.Database)
}

type MigrateCmd struct{}

func (m *MigrateCmd) Run(ctx *Context) error {
	db, err := ctx.openDB()
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, "schema up to date")
	return nil
}

type TokenCmd struct {
	UserID uint          `arg:"" help:"User ID the token acts as."`
	TTL    time.Duration `help:"Token lifetime; defaults to the configured access expiry."`
}

func (t *TokenCmd) Run(ctx *Context) error {
	jwtCfg := ctx.Config.JWT
	if t.TTL > 0 {
		jwtCfg.AccessExpiry = t.TTL
	}
	token, err := auth.GenerateAccessToken(&jwtCfg, t.UserID)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, token)
	return nil
}

type PartnershipsCmd struct {
	UserID  uint `arg:"" help:"User whose partnerships to list."`
	Pending bool `help:"List invites waiting on the user instead of active partnerships." xor:"view"`
	Sent    bool `help:"List every invite the user has sent, any status." xor:"view"`
}

func (p *PartnershipsCmd) Run(ctx *Context) error {
	db, err := ctx.openDB()
	if err != nil {
		return err
	}
	svc := service.NewPartnershipService(
		repository.NewPartnershipRepository(db),
		repository.NewUserRepository(db),
		catalog.New(repository.NewHabitRepository(db)),
		nil, nil, ctx.Log,
	)
	c := context.Background()
	var list []models.PartnershipView
	switch {
	case p.Pending:
		list, err = svc.ListPendingInvites(c, p.UserID)
	case p.Sent:
		list, err = svc.ListSentInvites(c, p.UserID)
	default:
		list, err = svc.ListActivePartnerships(c, p.UserID)
	}
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(ctx.Out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tHABIT\tMODE\tSTATUS\tPARTNER")
	for _, v := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.HabitName, v.Mode, v.Status, v.Partner.Handle)
	}
	return w.Flush()
}

type NudgeStatusCmd struct {
	PartnershipID string `arg:"" help:"Partnership to inspect."`
}

func (n *NudgeStatusCmd) Run(ctx *Context) error {
	db, err := ctx.openDB()
	if err != nil {
		return err
	}
	svc := service.NewNudgeService(repository.NewNudgeRepository(db), repository.NewPartnershipRepository(db), nil, ctx.Log)
	st, err := svc.Status(context.Background(), n.PartnershipID)
	if err != nil {
		return err
	}
	if st.LastNudge == nil {
		fmt.Fprintln(ctx.Out, "never nudged; nudge allowed")
		return nil
	}
	fmt.Fprintf(ctx.Out, "last nudged %s\n", st.LastNudge.Format(time.RFC3339))
	if st.CanNudge {
		fmt.Fprintln(ctx.Out, "nudge allowed")
	} else {
		fmt.Fprintf(ctx.Out, "cooldown active, %s left\n", st.RetryAfter.Round(time.Minute))
	}
	return nil
}

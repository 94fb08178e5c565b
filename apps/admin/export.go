package main

import (
	"context"
	"fmt"
	netmail "net/mail"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
)

// export logs in as an admin and downloads every user to dir, then emails
// the file to the admin if mail is set.
func (cli *commandLine) export(ctx context.Context, uname, pwd, dir string, mail bool) error {
	token, err := cli.client.Login(ctx, uname, pwd)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	client := cli.client.WithToken(token)

	me, err := client.Me(ctx, token)
	if err != nil {
		return errors.Wrap(err, "loading current user")
	}
	if !me.IsAdmin() {
		return errors.New("only admins may export users")
	}

	var ids []string
	for page := 1; ; page++ {
		p, err := client.Users(ctx, page)
		if err != nil {
			return errors.Wrapf(err, "listing users, page %d", page)
		}
		for _, u := range p.Rows {
			ids = append(ids, u.ID)
		}
		if !p.Pagination.HasNext() {
			break
		}
	}
	if len(ids) == 0 {
		fmt.Fprintln(cli.stdout, "no users to export")
		return nil
	}

	exp, err := client.ExportUsers(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "exporting users")
	}
	path := filepath.Join(dir, exp.Filename)
	if err = os.WriteFile(path, exp.Content, 0o600); err != nil {
		return errors.Wrap(err, "writing export")
	}
	fmt.Fprintf(cli.stdout, "%d users exported to %s\n", len(ids), path)
	cli.logger.Info("users exported", me, map[string]interface{}{"count": len(ids)})

	if !mail {
		return nil
	}
	msg := core.EmailMessage{
		To:          []netmail.Address{{Name: me.FullName(), Address: me.Email}},
		Subject:     "Users export",
		TextContent: fmt.Sprintf("%d users exported, see the attached %s.", len(ids), exp.Filename),
		Attachments: []core.Attachment{{Content: exp.Content, ContentType: exp.ContentType, Filename: exp.Filename}},
	}
	if err = cli.mailer.Send(ctx, msg); err != nil {
		return errors.Wrap(err, "emailing export")
	}
	fmt.Fprintf(cli.stdout, "export emailed to %s\n", me.Email)
	return nil
}

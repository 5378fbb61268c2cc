package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/user"
)

var errInvalidCURP = errors.New("invalid CURP")

// addUser updates or creates a user.User
func (cli *commandLine) addUser(curp, name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	curp = strings.ToUpper(core.CleanString(curp))
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	if !core.IsCURP(curp) {
		return errInvalidCURP
	}

	var roles []string
	if isAdmin {
		roles = user.AdminRoles
	}

	usr, err := cli.usrSvc.GetByCURP(ctx, curp)
	switch {
	case err == nil:
		if roles == nil {
			roles = usr.Roles
		}
		if email == "" {
			email = usr.Email
		}
		active := true
		_, err = cli.usrSvc.Update(ctx, usr, user.UpdateUser{
			Name:     name,
			Email:    email,
			IsActive: &active,
			Roles:    roles,
			Password: pwd,
		})
		return err
	case errors.Is(err, user.ErrNotFound):
		usr, err = cli.usrSvc.Create(ctx, user.NewUser{
			CURP:     curp,
			Name:     name,
			Email:    email,
			Password: pwd,
			Roles:    roles,
		})
		if err != nil {
			return err
		}
		fmt.Printf("user %d created\n", usr.ID)
		return nil
	default:
		return err
	}
}

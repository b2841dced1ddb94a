package main

import (
	"context"
	"fmt"
)

// setSuperAdmin grants or revokes the super admin rights of the user with the given email.
// The user must have signed in at least once.
func (cli *commandLine) setSuperAdmin(email string, isSuperAdmin bool) error {
	usr, err := cli.usrSvc.SetSuperAdmin(context.Background(), email, isSuperAdmin)
	if err != nil {
		return err
	}
	fmt.Printf("%s: is_super_admin=%t\n", usr.Email, usr.IsSuperAdmin)
	return nil
}

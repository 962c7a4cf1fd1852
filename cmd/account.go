////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
	"gitlab.com/parley/client/client"
)

// signupCmd creates an account and claims its username.
var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account with the email, password and username flags",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := initClient(ctx)
		defer s.Close()

		sess, err := s.SignUp(ctx, client.SignUpInfo{
			Email:     viper.GetString(emailFlag),
			Password:  viper.GetString(passwordFlag),
			FirstName: viper.GetString(firstNameFlag),
			LastName:  viper.GetString(lastNameFlag),
			Username:  viper.GetString(usernameFlag),
		})
		if err != nil {
			jww.FATAL.Panicf("Failed to sign up: %+v", err)
		}
		fmt.Printf("Signed up as %s (%s)\n", sess.Username(), sess.UID())
	},
}

// searchCmd lists usernames starting with a prefix.
var searchCmd = &cobra.Command{
	Use:   "search [prefix]",
	Short: "Search registered usernames by prefix",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := loginClient(ctx)
		defer s.Close()

		usernames, err := s.Search(ctx, args[0])
		if err != nil {
			jww.FATAL.Panicf("Failed to search: %+v", err)
		}
		for _, username := range usernames {
			fmt.Println(username)
		}
	},
}

// blockCmd blocks a user.
var blockCmd = &cobra.Command{
	Use:   "block [username]",
	Short: "Block a user and leave the conversation with them",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := loginClient(ctx)
		defer s.Close()

		if err := s.Block(ctx, args[0]); err != nil {
			jww.FATAL.Panicf("Failed to block %q: %+v", args[0], err)
		}
		fmt.Printf("Blocked %s\n", args[0])
	},
}

// unblockCmd removes a block.
var unblockCmd = &cobra.Command{
	Use:   "unblock [username]",
	Short: "Unblock a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := loginClient(ctx)
		defer s.Close()

		if err := s.Unblock(ctx, args[0]); err != nil {
			jww.FATAL.Panicf("Failed to unblock %q: %+v", args[0], err)
		}
		fmt.Printf("Unblocked %s\n", args[0])
	},
}

func init() {
	signupCmd.Flags().StringP(usernameFlag, "u", "", "Username to claim")
	bindFlag(signupCmd, usernameFlag)
	signupCmd.Flags().String(firstNameFlag, "", "First name")
	bindFlag(signupCmd, firstNameFlag)
	signupCmd.Flags().String(lastNameFlag, "", "Last name")
	bindFlag(signupCmd, lastNameFlag)

	rootCmd.AddCommand(signupCmd, searchCmd, blockCmd, unblockCmd)
}

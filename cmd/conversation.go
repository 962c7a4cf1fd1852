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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
	"gitlab.com/parley/client/messaging"
)

// startCmd opens the conversation with a user.
var startCmd = &cobra.Command{
	Use:   "start [username]",
	Short: "Start or reopen the conversation with a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := loginClient(ctx)
		defer s.Close()

		id, err := findConversation(ctx, s, args[0])
		if err != nil {
			jww.FATAL.Panicf("Failed to start conversation: %+v", err)
		}
		fmt.Println(id)
	},
}

// sendCmd sends a text or an image to a user.
var sendCmd = &cobra.Command{
	Use:   "send [username] [text]",
	Short: "Send a message, or the --image file, to a user",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := loginClient(ctx)
		defer s.Close()

		id, err := findConversation(ctx, s, args[0])
		if err != nil {
			jww.FATAL.Panicf("Failed to open conversation: %+v", err)
		}

		if path := viper.GetString(imageFlag); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				jww.FATAL.Panicf("Failed to read image: %+v", err)
			}
			msg, err := s.SendImage(ctx, id, data)
			if err != nil {
				jww.FATAL.Panicf("Failed to send image: %+v", err)
			}
			fmt.Printf("Sent %s\n", msg.ImageURL)
		} else if len(args) == 2 {
			if _, err = s.SendText(ctx, id, args[1]); err != nil {
				jww.FATAL.Panicf("Failed to send: %+v", err)
			}
			fmt.Println("Sent")
		} else {
			jww.FATAL.Panicf("Nothing to send")
		}
		s.WaitForNotifications()
	},
}

// listenCmd prints a conversation until interrupted.
var listenCmd = &cobra.Command{
	Use:   "listen [username]",
	Short: "Print the conversation with a user as messages arrive",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := loginClient(ctx)
		defer s.Close()

		id, err := findConversation(ctx, s, args[0])
		if err != nil {
			jww.FATAL.Panicf("Failed to open conversation: %+v", err)
		}

		_, err = s.SubscribeFrom(ctx, id, viper.GetInt(historyFlag),
			func(d messaging.Delivery) {
				fmt.Println(formatMessage(d))
			})
		if err != nil {
			jww.FATAL.Panicf("Failed to subscribe: %+v", err)
		}

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
	},
}

// listCmd prints the inbox.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active conversations, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := loginClient(ctx)
		defer s.Close()

		summaries, err := s.Overview(ctx)
		if err != nil {
			jww.FATAL.Panicf("Failed to list conversations: %+v", err)
		}
		for _, sum := range summaries {
			marker := " "
			if sum.Unseen {
				marker = "*"
			}
			last := ""
			if sum.Last != nil {
				last = formatMessage(messaging.Delivery{Message: *sum.Last})
			}
			fmt.Printf("%s %-20s %s\n", marker, sum.PeerUsername, last)
		}
	},
}

// leaveCmd leaves the conversation with a user.
var leaveCmd = &cobra.Command{
	Use:   "leave [username]",
	Short: "Leave the conversation with a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := loginClient(ctx)
		defer s.Close()

		id, err := findConversation(ctx, s, args[0])
		if err != nil {
			jww.FATAL.Panicf("Failed to find conversation: %+v", err)
		}
		if err = s.Leave(ctx, id); err != nil {
			jww.FATAL.Panicf("Failed to leave: %+v", err)
		}
		fmt.Printf("Left conversation with %s\n", args[0])
	},
}

func formatMessage(d messaging.Delivery) string {
	body := d.Text
	if d.IsImage() {
		body = "[image] " + d.ImageURL
	}
	return fmt.Sprintf("[%s] %s: %s",
		d.Time().Format("2006-01-02 15:04:05"), d.Sender, body)
}

func init() {
	sendCmd.Flags().String(imageFlag, "", "Path of an image to send")
	bindFlag(sendCmd, imageFlag)

	listenCmd.Flags().Int(historyFlag, 25, "Number of past messages to print")
	bindFlag(listenCmd, historyFlag)

	rootCmd.AddCommand(startCmd, sendCmd, listenCmd, listCmd, leaveCmd)
}

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type submissionView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Message   string `json:"message"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type submissionsListView struct {
	State       string           `json:"state"`
	Submissions []submissionView `json:"submissions"`
}

var submissionsCmd = &cobra.Command{
	Use:   "submissions",
	Short: "Inspect and manage contact submissions on a running server",
}

var submissionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contact submissions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd.Context())
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/submissions")
		if err != nil {
			return err
		}
		var list submissionsListView
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}

		if len(list.Submissions) == 0 {
			printStatus("Submissions", "none")
			return nil
		}
		for _, s := range list.Submissions {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s <%s>  %s\n",
				statusBadge(s.Status), s.ID, s.Name, s.Email, s.CreatedAt)
		}
		printStatus("Total", "%d", len(list.Submissions))
		return nil
	},
}

var submissionsReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark a submission as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd.Context())
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/submissions/"+args[0]+"/read", nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			printError("mark read failed (HTTP %d)", resp.StatusCode)
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
		}
		printSuccess("marked %s as read", args[0])
		return nil
	},
}

var submissionsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a submission permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd.Context())
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/api/submissions/"+args[0])
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			printError("remove failed (HTTP %d)", resp.StatusCode)
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
		}
		printSuccess("removed %s", args[0])
		return nil
	},
}

func init() {
	submissionsCmd.AddCommand(submissionsListCmd)
	submissionsCmd.AddCommand(submissionsReadCmd)
	submissionsCmd.AddCommand(submissionsRemoveCmd)
}

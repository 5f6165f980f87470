package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `olympiad is the organizer console of an olympiad bot.

Participants register in chat, receive tasks that start a personal timer, and upload one solution
before the timer runs out. This console is for organizers only; every tool call acts as the
authenticated organizer.

Typical workflow:
1) event_status to see whether the olympiad period is running and how many participants are solving.
2) list_submissions, then get_solution with an access code to read a solution.
3) set_score by handle or participant id once graded; list_scores shows the leaderboard.
4) recent_activity to audit registrations, issued tasks, expired windows and organizer actions.

delete_participant removes a record and cancels its timer. add_organizer grants rights to a chat id.`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "olympiad://docs/grading",
		Name:        "docs_grading",
		Title:       "Grading guide",
		Description: "How submissions are named and how points are recorded.",
		Content: `# Grading guide

- Solutions are stored as ` + "`@handle-result.pdf`" + `. Participants without a handle get ` + "`id<chat id>-result.pdf`" + `.
- get_solution returns the file base64 encoded in structured content.
- Points are non-negative integers. Setting points again overwrites the previous value.
- list_scores only shows participants with more than zero points.
- A participant who let the timer run out has stage "expired" and no stored solution.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}

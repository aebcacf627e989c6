package serverselect

import (
	"fmt"
	"io"

	"github.com/manifoldco/promptui"

	"github.com/taskdeck-dev/taskdeck/internal/cli/config"
	"github.com/taskdeck-dev/taskdeck/internal/cli/userconfig"
)

// Prompter asks the user to pick one of the configured servers
type Prompter func(projectConfig *config.Config) (*config.Server, error)

// ResolveServer determines which server to use based on the following priority:
// 1. If serverAlias is provided, use that server
// 2. If user has a selected server in their local config, use that
// 3. If only one server in project config, use that
// 4. Otherwise, prompt user to select a server
//
// Warnings about the user config are written to warn.
func ResolveServer(projectConfig *config.Config, serverAlias string, prompt Prompter, warn io.Writer) (*config.Server, error) {
	if serverAlias != "" {
		return projectConfig.GetServerByAlias(serverAlias)
	}

	selectedURL, err := userconfig.GetSelectedServer()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	if selectedURL != "" {
		server, err := projectConfig.GetServerByURL(selectedURL)
		if err == nil {
			return server, nil
		}
		// Selected server no longer exists in project config, clear it and continue
		_ = userconfig.SetSelectedServer("")
	}

	var server *config.Server
	if len(projectConfig.Servers) == 1 {
		server = &projectConfig.Servers[0]
	} else {
		if prompt == nil {
			prompt = PromptServerSelection
		}
		server, err = prompt(projectConfig)
		if err != nil {
			return nil, err
		}
	}

	if err := userconfig.SetSelectedServer(server.URL); err != nil {
		// Don't fail if we can't save, just continue
		fmt.Fprintf(warn, "Warning: failed to save selected server: %v\n", err)
	}

	return server, nil
}

// PromptServerSelection shows an interactive prompt for the user to select a server
func PromptServerSelection(projectConfig *config.Config) (*config.Server, error) {
	if len(projectConfig.Servers) == 0 {
		return nil, fmt.Errorf("no servers configured in taskdeck.json")
	}

	type serverOption struct {
		Label  string
		Server *config.Server
	}

	options := make([]serverOption, len(projectConfig.Servers))
	for i := range projectConfig.Servers {
		server := &projectConfig.Servers[i]
		options[i] = serverOption{
			Label:  fmt.Sprintf("%s (%s)", server.Alias, server.URL),
			Server: server,
		}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select a server",
		Items:     options,
		Templates: templates,
		Size:      10,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("server selection cancelled: %w", err)
	}

	return options[index].Server, nil
}

package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/honganh1206/relay/client"
	"github.com/honganh1206/relay/server"
	"github.com/honganh1206/relay/transport"
	"github.com/honganh1206/relay/utils"
)

var describeAddress string

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Fetch and print a server's service description",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := transport.Dial(describeAddress)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", describeAddress, err)
		}
		defer conn.Close()

		httpClient := client.NewHTTPClient(conn, describeAddress)
		token, err := httpClient.Get(server.DescriptionPath)
		if err != nil {
			return err
		}

		var description serviceDescription
		err = httpClient.GetRawResponse(token, func(status int, body []byte) error {
			if status != 200 {
				return fmt.Errorf("server answered %d for %s", status, server.DescriptionPath)
			}
			return json.Unmarshal(body, &description)
		})
		if err != nil {
			return err
		}

		printDescription(&description)
		return nil
	},
}

func init() {
	describeCmd.Flags().StringVar(&describeAddress, "address", "localhost:8080", "Server address to describe")
}

type serviceDescription struct {
	Type        string                       `json:"type"`
	Version     string                       `json:"version"`
	ServiceName string                       `json:"servicename"`
	URL         string                       `json:"url"`
	Methods     map[string]methodDescription `json:"methods"`
}

type methodDescription struct {
	DocLines []string                    `json:"doc_lines"`
	Params   map[string]paramDescription `json:"params"`
	RetInfo  retDescription              `json:"ret_info"`
}

type paramDescription struct {
	DefOrder int             `json:"def_order"`
	Type     json.RawMessage `json:"type"`
	Optional bool            `json:"optional"`
}

type retDescription struct {
	Type json.RawMessage `json:"type"`
}

func printDescription(description *serviceDescription) {
	header := color.New(color.FgCyan, color.Bold)
	header.Printf("%s (%s %s)\n", description.ServiceName, description.Type, description.Version)
	fmt.Println(description.URL)
	fmt.Println()

	names := make([]string, 0, len(description.Methods))
	for name := range description.Methods {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		method := description.Methods[name]
		rows = append(rows, []string{
			name,
			formatParams(method.Params),
			typeRefString(method.RetInfo.Type),
			strings.Join(method.DocLines, " "),
		})
	}
	utils.RenderTable([]string{"Method", "Params", "Returns", "Doc"}, rows)
}

func formatParams(params map[string]paramDescription) string {
	ordered := make([]string, 0, len(params))
	for name := range params {
		ordered = append(ordered, name)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return params[ordered[i]].DefOrder < params[ordered[j]].DefOrder
	})
	parts := make([]string, 0, len(ordered))
	for _, name := range ordered {
		part := name + " " + typeRefString(params[name].Type)
		if params[name].Optional {
			part += "?"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

// typeRefString renders a JSON-WSP type reference: a class name string, an
// array of the element type, or null.
func typeRefString(ref json.RawMessage) string {
	if string(ref) == "null" {
		return "null"
	}
	var asString string
	if json.Unmarshal(ref, &asString) == nil && asString != "" {
		return asString
	}
	var asArray []json.RawMessage
	if json.Unmarshal(ref, &asArray) == nil && len(asArray) == 1 {
		return "[" + typeRefString(asArray[0]) + "]"
	}
	return "null"
}

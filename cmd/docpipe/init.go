package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/spf13/cobra"
)

const configTemplate = `backend: {{ .backend }}
log_level: {{ .logLevel }}
params:
{{- if eq .backend "mongo" }}
  uri: {{ .uri | quote }}
  database: {{ .database }}
  connect_timeout: 10s
{{- else }}
  storage_path: {{ .storagePath | quote }}
{{- end }}
scenario:
  worst_score: 30
  quiz_score: 80
  seed_students: {{ .seed }}
`

const envTemplate = `# overrides for {{ .path | base }}
DOCPIPE_BACKEND={{ .backend }}
DOCPIPE_LOG_LEVEL={{ .logLevel }}
{{- if eq .backend "mongo" }}
DOCPIPE_MONGO_URI={{ .uri }}
DOCPIPE_DATABASE={{ .database }}
{{- end }}
`

type initFlags struct {
	projectPath string
	backend     string
	uri         string
	database    string
	storagePath string
	logLevel    string
	seed        bool
}

func initCmd() *cobra.Command {
	var flags initFlags
	cmd := &cobra.Command{
		Use:   "init",
		Short: "write a docpipe.yaml config and a .env file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := writeProject(flags); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "failed to initialize project: ", err.Error())
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "new project created: %v\n", flags.projectPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.projectPath, "path", "p", ".", "path to project directory")
	cmd.Flags().StringVarP(&flags.backend, "backend", "b", "badger", "backend name (badger, mongo)")
	cmd.Flags().StringVar(&flags.uri, "uri", "mongodb://localhost:27017", "mongo connection uri")
	cmd.Flags().StringVar(&flags.database, "database", "docpipe", "mongo database")
	cmd.Flags().StringVar(&flags.storagePath, "storage-path", "", "badger storage directory (empty for in-memory)")
	cmd.Flags().StringVarP(&flags.logLevel, "log-level", "l", "info", "log level")
	cmd.Flags().BoolVar(&flags.seed, "seed", true, "seed the students collection")
	return cmd
}

func writeProject(flags initFlags) error {
	if err := os.MkdirAll(flags.projectPath, 0755); err != nil {
		return err
	}
	configPath := filepath.Join(flags.projectPath, "docpipe.yaml")
	data := map[string]any{
		"backend":     flags.backend,
		"uri":         flags.uri,
		"database":    flags.database,
		"storagePath": flags.storagePath,
		"logLevel":    flags.logLevel,
		"seed":        flags.seed,
		"path":        configPath,
	}
	if err := writeTemplate(configPath, configTemplate, data); err != nil {
		return err
	}
	return writeTemplate(filepath.Join(flags.projectPath, ".env"), envTemplate, data)
}

func writeTemplate(path string, text string, data map[string]any) error {
	tmpl, err := template.New(filepath.Base(path)).Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return tmpl.Execute(f, data)
}

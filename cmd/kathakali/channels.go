package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/kathakali/internal/avatar"
	"github.com/ayusman/kathakali/internal/rig"
)

func newChannelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "channels [model.glb]",
		Short: "List an avatar's morph channels and the detector names driving them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.cfg.Avatar.Model
			if len(args) == 1 {
				path = args[0]
			}
			model, err := loadModel(path)
			if err != nil {
				return err
			}

			names := rig.NewNameMap(ctx.cfg.NameOverrides())
			if st, err := openStore(ctx.cfg); err == nil {
				overrides, err := st.Mappings().Overrides()
				st.Close()
				if err != nil {
					return fmt.Errorf("load mappings: %w", err)
				}
				names = names.Merge(overrides)
			} else {
				ctx.log.Warn().Err(err).Msg("stored mappings unavailable")
			}

			fmt.Fprint(cmd.OutOrStdout(), renderChannels(model, names))
			return nil
		},
	}
}

func renderChannels(model *avatar.Model, names *rig.NameMap) string {
	sources := names.Sources()
	channels := model.Channels()

	rows := make([][]string, 0, len(channels))
	for _, name := range channels.Names() {
		drivenBy := strings.Join(sources[name], ", ")
		if drivenBy == "" {
			drivenBy = "-"
		}
		rows = append(rows, []string{strconv.Itoa(channels[name]), name, drivenBy})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d channels\n", model.Name(), len(channels))
	b.WriteString(renderTable([]string{"SLOT", "CHANNEL", "DRIVEN BY"}, rows, []columnAlignment{alignRight}))
	b.WriteString("\n")

	var bones [][]string
	for _, bone := range rig.Bones {
		if node, ok := model.BoneNode(bone); ok {
			bones = append(bones, []string{string(bone), node})
		}
	}
	if len(bones) > 0 {
		b.WriteString(renderTable([]string{"BONE", "NODE"}, bones, nil))
		b.WriteString("\n")
	}
	return b.String()
}

package main

import (
	"fmt"

	"github.com/akmonengine/particle/internal/scene"
	"github.com/spf13/cobra"
)

func listScenes(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		s, err := loadScene(args[0])
		if err != nil {
			return err
		}
		data, err := scene.Marshal(s)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	if dump {
		for _, name := range scene.Names() {
			s, _ := scene.Preset(name)
			data, err := scene.Marshal(s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "---\n%s", data)
		}
		return nil
	}

	t := newTable("scene", "description", "bodies", "joints", "multibodies", "duration")
	for _, name := range scene.Names() {
		s, _ := scene.Preset(name)
		t.Row(
			name,
			s.Description,
			fmt.Sprint(len(s.Bodies)),
			fmt.Sprint(len(s.Joints)),
			fmt.Sprint(len(s.Multibodies)),
			fmt.Sprintf("%gs", s.Duration),
		)
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}

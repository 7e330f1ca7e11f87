package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ayusman/posetrack/internal/config"
	"github.com/ayusman/posetrack/internal/skeleton"
	"github.com/ayusman/posetrack/internal/synth"
	"github.com/ayusman/posetrack/internal/tracking"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	referenceRole  string
	referencePose  string
	referenceSpace string
)

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Print a reference hand pose",
	Long:  `Print the bones of a reference pose from the synthetic backend in engine space.`,
	Example: `  posetrack reference --pose fist
  posetrack reference --role left_hand --pose open_hand --space parent`,
	Args: cobra.NoArgs,
	RunE: runReference,
}

func init() {
	referenceCmd.Flags().StringVar(&referenceRole, "role", tracking.RoleRightHand.String(), "Hand role")
	referenceCmd.Flags().StringVar(&referencePose, "pose", skeleton.BindPose.String(), "Reference pose (bind_pose, open_hand, fist, grip_limit)")
	referenceCmd.Flags().StringVar(&referenceSpace, "space", skeleton.SpaceModel.String(), "Transform space (model, parent)")
	rootCmd.AddCommand(referenceCmd)
}

func runReference(cmd *cobra.Command, args []string) error {
	role, err := tracking.ParseRole(referenceRole)
	if err != nil {
		return err
	}
	if !role.IsHand() {
		return fmt.Errorf("role %s has no skeleton", role)
	}
	pose, err := skeleton.ParseReferencePose(referencePose)
	if err != nil {
		return err
	}
	space, err := skeleton.ParseTransformSpace(referenceSpace)
	if err != nil {
		return err
	}

	cfg := config.Default()
	src := skeleton.New(skeleton.Config{
		Role:     role,
		Provider: synth.New(cfg.Loop.FrameRate, []tracking.Role{role}),
		Logger:   zerolog.Nop(),
	})
	bones, err := src.ReferenceTransforms(space, pose)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BONE\tPARENT\tPOSITION\tROTATION (w x y z)")
	for i, b := range bones {
		parent := "-"
		if p := skeleton.Parent(i); p >= 0 {
			parent = skeleton.BoneName(p)
		}
		fmt.Fprintf(w, "%s\t%s\t(%.4f, %.4f, %.4f)\t(%.4f %.4f %.4f %.4f)\n",
			skeleton.BoneName(i), parent,
			b.Position.X, b.Position.Y, b.Position.Z,
			b.Rotation.Real, b.Rotation.Imag, b.Rotation.Jmag, b.Rotation.Kmag)
	}
	return w.Flush()
}

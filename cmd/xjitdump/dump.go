package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/ir"
	"github.com/insinfo/asmjit-sub003/internal/isa/amd64"
	"github.com/insinfo/asmjit-sub003/unicompiler"
	"github.com/spf13/cobra"
)

func newDumpCmd(stdout io.Writer) *cobra.Command {
	var archName string
	var width int

	cmd := &cobra.Command{
		Use:   "dump <verb>",
		Short: "Build and encode a canned demo function for one verb",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, err := parseArch(archName)
			if err != nil {
				return err
			}
			w, err := widthFor(width)
			if err != nil {
				return err
			}

			u, err := buildDemo(args[0], arch, w)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}

			printNodes(stdout, u.Builder())

			res, err := u.Finalize()
			if err != nil {
				return fmt.Errorf("finalize: %w", err)
			}
			if err := u.WriteBack(res); err != nil {
				return fmt.Errorf("writeback: %w", err)
			}

			if arch == unicompiler.ArchARM64 {
				fmt.Fprintln(stdout, "\n(arm64 byte encoder is not part of this module's scope; node listing above is the final output for this target)")
				return nil
			}

			buf := asm.NewCodeBuffer(64)
			enc := amd64.NewEncoder(buf, u.Labels())
			if err := enc.Encode(u.Builder()); err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			if err := u.Labels().ResolveAll(buf); err != nil {
				return fmt.Errorf("resolve: %w", err)
			}

			fmt.Fprintf(stdout, "\n%d bytes:\n%s\n", buf.Len(), formatHex(buf.Bytes()))
			return nil
		},
	}
	cmd.Flags().StringVar(&archName, "arch", "amd64", "target architecture: amd64 or arm64")
	cmd.Flags().IntVar(&width, "width", 128, "vector width in bits: 128 or 256")
	return cmd
}

func newVerbsCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "verbs",
		Short: "List the verbs dump understands",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, v := range verbNames {
				fmt.Fprintln(stdout, v)
			}
			return nil
		},
	}
}

func parseArch(name string) (unicompiler.Arch, error) {
	switch strings.ToLower(name) {
	case "amd64", "x86-64", "x64":
		return unicompiler.ArchAMD64, nil
	case "arm64", "aarch64":
		return unicompiler.ArchARM64, nil
	default:
		return 0, fmt.Errorf("unknown --arch %q (choose amd64 or arm64)", name)
	}
}

func widthFor(bits int) (asm.RegWidth, error) {
	switch bits {
	case 128:
		return asm.Width128, nil
	case 256:
		return asm.Width256, nil
	default:
		return 0, fmt.Errorf("unsupported --width %d (choose 128 or 256)", bits)
	}
}

func printNodes(w io.Writer, b *ir.Builder) {
	fmt.Fprintln(w, "nodes:")
	b.ForEach(func(id ir.NodeID, n *ir.Node) {
		switch n.Kind {
		case ir.NodeFunc:
			fmt.Fprintf(w, "  [%d] func %s\n", id, n.Signature.Name)
		case ir.NodeLabel:
			fmt.Fprintf(w, "  [%d] label L%d\n", id, n.LabelID)
		case ir.NodeInst:
			fmt.Fprintf(w, "  [%d] inst id=%d operands=%d\n", id, n.InstID, len(n.Operands))
		case ir.NodeSectionAlign:
			fmt.Fprintf(w, "  [%d] align %d\n", id, n.AlignBytes)
		case ir.NodeEmbedData:
			fmt.Fprintf(w, "  [%d] data %d bytes\n", id, len(n.Data))
		}
	})
}

func formatHex(b []byte) string {
	return hex.EncodeToString(b)
}

/*
Package cli provides the output, progress and signal helpers shared by the
warden commands.

Output Formatting:

Command results are rendered as a text table, JSON or CSV. Values that
implement Tabular are laid out as rows; anything else falls back to %v for
text and is rejected for CSV:

	formatter, err := cli.NewFormatter(cli.FormatJSON)
	if err != nil {
		return err
	}
	return formatter.FormatTo(os.Stdout, status)

Progress Reporting:

Catalog imports redraw one status line as items are written, then close it
with Done or Fail:

	progress := cli.NewImportProgress(os.Stderr, c.Size())
	importer.OnProgress = progress.Advance
	if _, err := importer.Import(ctx, c); err != nil {
		progress.Fail(err)
		return err
	}
	progress.Done()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli

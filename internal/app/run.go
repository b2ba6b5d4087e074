package app

import (
	"context"
	"fmt"

	"github.com/vk/bzlcrate/internal/ctxlog"
	"github.com/vk/bzlcrate/internal/diag"
	"github.com/vk/bzlcrate/internal/metadata"
	"github.com/vk/bzlcrate/internal/override"
	"github.com/vk/bzlcrate/internal/planner"
	"github.com/vk/bzlcrate/internal/platform"
	"github.com/vk/bzlcrate/internal/render"
	"github.com/vk/bzlcrate/internal/resolver"
	"github.com/vk/bzlcrate/internal/selectexpr"
	"github.com/vk/bzlcrate/internal/settings"
)

// Run executes the generation pipeline. The run is atomic: every fatal
// diagnostic collected anywhere in the pipeline blocks the commit, so a
// failed run leaves previously generated files untouched.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	stg, err := settings.LoadFile(ctx, a.cfg.SettingsPath)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if a.cfg.Mode != "" {
		stg.Mode = settings.Mode(a.cfg.Mode)
	}
	if a.cfg.OutputRoot != "" {
		stg.OutputRoot = a.cfg.OutputRoot
	}
	a.logger.Debug("Settings loaded.", "mode", stg.Mode, "output_root", stg.OutputRoot)

	diags := diag.NewCollector()

	model, err := metadata.LoadFile(ctx, a.cfg.MetadataPath, diags)
	if err != nil {
		return fmt.Errorf("loading metadata: %w", err)
	}
	if err := a.checkpoint(diags, "metadata validation"); err != nil {
		return err
	}
	a.logger.Debug("Metadata loaded and validated.", "packages", model.Len())

	override.Apply(ctx, model, stg.Overrides, diags)
	if err := a.checkpoint(diags, "override application"); err != nil {
		return err
	}
	a.logger.Debug("Overrides applied.", "count", len(stg.Overrides))

	catalog, err := platform.DefaultCatalog().Restrict(stg.Triples)
	if err != nil {
		return fmt.Errorf("restricting platform catalog: %w", err)
	}
	matcher := platform.NewMatcher(catalog)

	res := resolver.New(model, matcher, nil)
	views := res.Resolve(ctx, diags)
	if err := a.checkpoint(diags, "resolution"); err != nil {
		return err
	}
	a.logger.Info("Dependency graph resolved.", "crates", len(views), "triples", len(res.Triples()))

	groups := make([]selectexpr.Condition, 0, len(stg.Groups))
	for _, g := range stg.Groups {
		groups = append(groups, selectexpr.Condition{Label: g.Label, Triples: g.Triples})
	}
	synth, err := selectexpr.New(stg.PlatformLabelPrefix, res.Triples(), groups)
	if err != nil {
		return fmt.Errorf("building condition catalog: %w", err)
	}

	renderer, err := render.New(render.Config{
		Mode:            stg.Mode,
		OutputRoot:      stg.OutputRoot,
		BuildfileSuffix: stg.BuildfileSuffix,
		WorkspacePrefix: stg.WorkspacePrefix,
	}, model)
	if err != nil {
		return err
	}

	layout := planner.Layout{
		Mode:            stg.Mode,
		OutputRoot:      stg.OutputRoot,
		BuildfileSuffix: stg.BuildfileSuffix,
	}
	plan := planner.New(a.cfg.WorkDir, stg.OutputRoot, render.Marker)

	for _, v := range views {
		content, err := renderer.RenderCrate(v, synth, diags)
		if err != nil {
			return err
		}
		if err := plan.Add(layout.CratePath(v.Pkg), content); err != nil {
			return err
		}
	}

	aliases, err := renderer.RenderAliases(views)
	if err != nil {
		return err
	}
	if err := plan.Add(layout.AliasesPath(), aliases); err != nil {
		return err
	}

	if stg.Mode == settings.ModeRemote {
		aggregator, err := renderer.RenderAggregator(views)
		if err != nil {
			return err
		}
		if err := plan.Add(layout.AggregatorPath(), aggregator); err != nil {
			return err
		}
		if err := plan.Add(layout.RemoteAnchorPath(), render.HeaderLine+"\n"); err != nil {
			return err
		}
	}

	if err := a.checkpoint(diags, "rendering"); err != nil {
		return err
	}
	for _, d := range diags.Diagnostics() {
		a.logger.Warn(d.Summary, "package", d.Package)
	}

	if a.cfg.DryRun {
		for _, path := range plan.Files() {
			fmt.Fprintln(a.outW, path)
		}
		a.logger.Info("Dry run complete; nothing written.", "files", len(plan.Files()))
		return nil
	}

	report, err := plan.Commit(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("Generation complete.",
		"written", len(report.Written),
		"unchanged", len(report.Unchanged),
		"pruned", len(report.Pruned))

	a.logger.Debug("App.Run method finished.")
	return nil
}

// checkpoint fails the run when any fatal diagnostic exists at this stage.
// Warnings stay in the collector; the successful path reports them once
// before committing.
func (a *App) checkpoint(diags *diag.Collector, stage string) error {
	if diags.HasFatal() {
		a.logger.Error("Fatal diagnostics collected; aborting before commit.", "stage", stage)
		return diags.Err()
	}
	return nil
}

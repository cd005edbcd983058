// Package pipeline builds one application module with esbuild and, in
// development mode, keeps rebuilding it as its sources change.
//
// A pipeline is configured with an ordered list of plugins. Plugins take part
// in the build through optional hook interfaces:
//
//   - [ConfigHook] runs once, before the first build, and may patch the
//     build configuration (environment values, watch mode) or fail it.
//   - [ResolveHook] and [LoadHook] answer for virtual module ids.
//   - [WriteBundleHook] runs after every successful build has been written.
//   - [CloseHook] runs when a watch session ends.
//
// Plugin lists may contain nil entries, [*Deferred] entries that resolve
// later, and nested [Group] lists. The pipeline flattens all of these before
// running hooks; [ConfigHook] implementations still see the list exactly as
// configured.
//
// # Usage
//
//	p, _ := pipeline.New(pipeline.Config{
//	    Name:    "main",
//	    Mode:    config.ModeDevelopment,
//	    Root:    "/work/packages/main",
//	    Entries: []pipeline.Entry{{Path: "src/index.ts"}},
//	    OutDir:  "dist",
//	    Plugins: []pipeline.Plugin{controller},
//	})
//	session, err := p.Build(ctx)
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
package pipeline

// Package datadash is a sales dashboard engine for arbitrary tabular data.
//
// A dataset (CSV or xlsx) is loaded with package dataset, its columns are
// assigned to sales roles with a schema.Mapping, and engine.Run computes a
// report of KPIs, monthly series, breakdowns, rankings, customer loyalty
// and return metrics:
//
//	ds, err := dataset.Load("orders.csv")
//	mapping := schema.Suggest(schema.Detect(ds))
//	report, err := engine.Run(ctx, engine.Request{Data: ds, Mapping: mapping})
//
// Package session keeps per-user state for the HTTP API in package server.
// All computation is local.
package datadash

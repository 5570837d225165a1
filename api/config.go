package api

// Config is the agload configuration document. It decodes from HCL or YAML.
type Config struct {
	Store  *Store  `hcl:"store,block" yaml:"store"`
	Import *Import `hcl:"import,block" yaml:"import"`
	Log    *Log    `hcl:"log,block" yaml:"log"`
}

// Store selects the target database.
type Store struct {
	// Driver is "agensgraph" or "sqlite".
	Driver string `hcl:"driver,optional" yaml:"driver"`
	// DSN is a PostgreSQL URL (jdbc: prefix allowed) or a SQLite path.
	DSN      string `hcl:"dsn,optional" yaml:"dsn"`
	User     string `hcl:"user,optional" yaml:"user"`
	Password string `hcl:"password,optional" yaml:"password"`
}

// Import tunes parsing and staging.
type Import struct {
	Graph string `hcl:"graph,optional" yaml:"graph"`
	// ReadLabels is on unless set to false.
	ReadLabels         *bool  `hcl:"read_labels,optional" yaml:"read_labels"`
	DefaultEdgeLabel   string `hcl:"default_edge_label,optional" yaml:"default_edge_label"`
	DefaultVertexLabel string `hcl:"default_vertex_label,optional" yaml:"default_vertex_label"`
	// IDProperty keeps each node's file id as a property of this name.
	IDProperty    string `hcl:"id_property,optional" yaml:"id_property"`
	StagingPrefix string `hcl:"staging_prefix,optional" yaml:"staging_prefix"`
	KeepStaging   bool   `hcl:"keep_staging,optional" yaml:"keep_staging"`
}

// Log configures the process logger.
type Log struct {
	Level  string `hcl:"level,optional" yaml:"level"`
	Format string `hcl:"format,optional" yaml:"format"` // console or json
}

// LabelsRead reports whether node and edge labels are read from the file.
func (i *Import) LabelsRead() bool {
	return i.ReadLabels == nil || *i.ReadLabels
}

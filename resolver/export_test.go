package resolver

// Exported for tests.
var BuildTargets = buildTargets

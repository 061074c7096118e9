package loop

// Region is one instrumented span of the synthetic workload. Share is the
// fraction of the frame length spent in the region itself before its
// children run.
type Region struct {
	Name     string
	Share    float64
	Children []Region
}

// DefaultScene is a game loop whose update costs a third of the frame and
// whose draw routine, nested inside the loop, costs the other two thirds.
func DefaultScene() []Region {
	return []Region{
		{
			Name:  "Main Game Loop",
			Share: 1.0 / 3.0,
			Children: []Region{
				{Name: "Graphics Draw Routine", Share: 2.0 / 3.0},
			},
		},
	}
}

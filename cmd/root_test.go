package cmd

import "testing"

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"align", "import", "ledger", "gazetteer", "parse"} {
		t.Run(name, func(t *testing.T) {
			cmd, _, err := root.Find([]string{name})
			if err != nil || cmd.Name() != name {
				t.Errorf("Expected command %s, got %v (err %v)", name, cmd, err)
			}
		})
	}

	for _, flag := range []string{"db-driver", "db-dsn", "config", "verbose"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("Expected global flag --%s", flag)
		}
	}
}

func TestSubcommands(t *testing.T) {
	root := NewRootCmd()
	for _, path := range [][]string{{"ledger", "list"}, {"ledger", "set"}, {"gazetteer", "load"}} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[1] {
			t.Errorf("Expected command %v, got %v (err %v)", path, cmd, err)
		}
	}
}

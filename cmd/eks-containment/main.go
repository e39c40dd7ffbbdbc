package main

import "github.com/fairwindsops/insights-plugins/plugins/eks-containment/cmd/eks-containment/commands"

func main() {
	commands.Execute()
}

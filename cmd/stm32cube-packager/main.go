// Command stm32cube-packager builds the framework-stm32cube PlatformIO package
// from the STM32Cube repositories.
package main

import "github.com/t04glovern/pio-stm32cube-package-creator/cmd/stm32cube-packager/cmd"

func main() {
	cmd.Execute()
}

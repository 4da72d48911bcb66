// Drives the vehicle straight ahead for a fixed distance and stops.
// Handy for checking that the bridge, vehicle and spectator all work
// before starting a collection run.
package main

import (
	"flag"
	"fmt"
	"time"

	"signal-collector/pkg/sim"
	"signal-collector/pkg/utils"
)

var (
	bridgeAddr = flag.String("bridge", "localhost:2000", "simulation bridge address")
	town       = flag.String("town", "Town01", "town to load")
	model      = flag.String("model", "vehicle.mercedes.coupe", "vehicle model")
	distance   = flag.Float64("distance", 10, "distance to travel in meters")
)

func main() {
	flag.Parse()
	logger := utils.GetLogger()
	defer logger.Sync()

	client, err := sim.Dial(*bridgeAddr, 10*time.Second)
	if err != nil {
		logger.Fatal(err)
	}
	defer client.Close()

	world, err := client.LoadWorld(*town)
	if err != nil {
		logger.Fatal(err)
	}
	vehicle, err := world.SpawnVehicle(*model)
	if err != nil {
		logger.Fatal(err)
	}
	defer vehicle.Destroy()

	start, err := vehicle.Transform()
	if err != nil {
		logger.Fatal(err)
	}
	if err := vehicle.ApplyControl(sim.VehicleControl{Throttle: 0.5}); err != nil {
		logger.Fatal(err)
	}

	traveled := 0.0
	for traveled < *distance {
		pose, err := vehicle.Transform()
		if err != nil {
			logger.Fatal(err)
		}
		traveled = pose.Location.Planar().Sub(start.Location.Planar()).Len()

		// Trail the vehicle from behind and above.
		if err := world.SetSpectator(sim.Transform{
			Location: pose.Location.Add(sim.Location{Y: -10, Z: 5}),
			Rotation: sim.Rotation{Pitch: -15, Yaw: pose.Rotation.Yaw},
		}); err != nil {
			logger.Debugf("set spectator: %s", err)
		}

		fmt.Printf("Distance traveled: %.2f meters\r", traveled)
		time.Sleep(50 * time.Millisecond)
	}

	if err := vehicle.ApplyControl(sim.VehicleControl{Brake: 1.0}); err != nil {
		logger.Fatal(err)
	}

	final, err := vehicle.Transform()
	if err != nil {
		logger.Fatal(err)
	}
	fmt.Printf("\nTarget reached! Final distance: %.2f meters\n", traveled)
	fmt.Printf("Final position: x=%.2f, y=%.2f, z=%.2f\n",
		final.Location.X, final.Location.Y, final.Location.Z)
}
